package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshHashMismatch is an exported constant or variable used by the authentication engine.
var ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRefreshSessionNotFound is returned when the user has no stored session.
var ErrRefreshSessionNotFound = errors.New("refresh session not found")

// ErrRefreshSessionExpired is returned when the stored session is expired.
var ErrRefreshSessionExpired = errors.New("refresh session expired")

// ErrRefreshSessionCorrupt is returned when the stored session blob is invalid.
var ErrRefreshSessionCorrupt = errors.New("refresh session corrupt")

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

// The rotate script parses the binary session blob in place so the
// compare-and-swap covers both the hash check and the rewrite. A mismatch
// returns without touching the key: the legitimate session must survive a
// replayed token.
const rotateRefreshScript = `
local function read_be32(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  if not b4 then
    return nil
  end
  return ((b1 * 256 + b2) * 256 + b3) * 256 + b4
end

local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local function write_be32(n)
  local b4 = n % 256
  n = (n - b4) / 256
  local b3 = n % 256
  n = (n - b3) / 256
  local b2 = n % 256
  n = (n - b2) / 256
  local b1 = n % 256
  return string.char(b1, b2, b3, b4)
end

local function write_be64(n)
  local bytes = {}
  for i = 8, 1, -1 do
    bytes[i] = n % 256
    n = (n - bytes[i]) / 256
  end
  return string.char(bytes[1], bytes[2], bytes[3], bytes[4], bytes[5], bytes[6], bytes[7], bytes[8])
end

local session_key = KEYS[1]
local provided_hash = ARGV[1]
local next_hash = ARGV[2]
local now_unix = tonumber(ARGV[3])
local next_expires_at = tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local data = redis.call("GET", session_key)
if not data then
  return {0}
end

local version = string.byte(data, 1)
if version ~= 1 then
  return {4}
end

local uid_len = string.byte(data, 2)
if not uid_len then
  return {4}
end
local idx = 3 + uid_len
local uname_len = string.byte(data, idx)
if not uname_len then
  return {4}
end

local rot_offset = idx + 1 + uname_len
local refresh_offset = rot_offset + 4
local created_offset = refresh_offset + 32
local expires_offset = created_offset + 8
if #data < expires_offset + 7 then
  return {4}
end

local expires_at = read_be64(data, expires_offset)
if not expires_at or expires_at <= now_unix then
  redis.call("DEL", session_key)
  return {1}
end

local stored_hash = string.sub(data, refresh_offset, refresh_offset + 31)
if stored_hash ~= provided_hash then
  return {2}
end

local rotation = (read_be32(data, rot_offset) + 1) % 4294967296
local head = string.sub(data, 1, rot_offset - 1)
local created = string.sub(data, created_offset, created_offset + 7)
local updated = head .. write_be32(rotation) .. next_hash .. created .. write_be64(next_expires_at)

redis.call("SET", session_key, updated, "PX", ttl_ms)

return {3, updated}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed session store holding at most one session per user,
// with atomic refresh-token rotation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(userID string) string {
	return s.prefix + ":sess:" + userID
}

func (s *Store) replayKey(userID string) string {
	return s.prefix + ":replay:" + userID
}

// Save persists a [Session] to Redis with the given TTL, replacing any
// existing session for the user.
//
//	Performance: 1 Redis SET.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sess.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves the session for a user. Returns the decoded [Session] or
// redis.Nil if no live session exists.
//
//	Performance: 1 Redis GET (+1 DEL if the blob outlived its expiry).
func (s *Store) Get(ctx context.Context, userID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if time.Now().Unix() >= sess.ExpiresAt {
		if err := s.Delete(ctx, userID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	return sess, nil
}

// Delete removes the user's session. Deleting an absent session is not an error.
//
//	Performance: 1 Redis DEL.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// TrackReplayAnomaly increments the replay anomaly counter for a user.
func (s *Store) TrackReplayAnomaly(ctx context.Context, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	key := s.replayKey(userID)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Rotate atomically replaces the refresh-token hash in the user's session
// using a Lua CAS script, incrementing the rotation counter and extending
// the session lifetime to expiresAt/ttl. This is the core of the rotation
// protocol that enables reuse detection.
//
// A hash mismatch leaves the stored session untouched and returns
// [ErrRefreshHashMismatch]: the holder of the live token keeps its session.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
//	Security: CAS prevents lost updates under concurrency.
func (s *Store) Rotate(
	ctx context.Context,
	userID string,
	providedHash [32]byte,
	nextHash [32]byte,
	expiresAt int64,
	ttl time.Duration,
) (*Session, error) {
	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID)},
		providedHash[:],
		nextHash[:],
		time.Now().Unix(),
		expiresAt,
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid refresh script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid refresh script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, errors.Join(redis.Nil, ErrRefreshSessionNotFound)
	case rotateStatusExpired:
		return nil, errors.Join(redis.Nil, ErrRefreshSessionExpired)
	case rotateStatusMismatch:
		return nil, ErrRefreshHashMismatch
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing updated session payload", ErrRedisUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid updated session payload", ErrRedisUnavailable)
		}

		sess, decErr := Decode(blob)
		if decErr != nil {
			return nil, decErr
		}
		return sess, nil
	case rotateStatusInvalidBlob:
		return nil, errors.Join(ErrRedisUnavailable, ErrRefreshSessionCorrupt)
	default:
		return nil, fmt.Errorf("%w: unknown refresh script status", ErrRedisUnavailable)
	}
}

package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTestRedis(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewStore(client, "cv")
}

func seedSession(t *testing.T, store *Store, hash [32]byte, expiresAt int64) *Session {
	t.Helper()

	sess := &Session{
		UserID:      "u1",
		Username:    "alice",
		RefreshHash: hash,
		CreatedAt:   time.Now().Unix(),
		ExpiresAt:   expiresAt,
	}
	if err := store.Save(context.Background(), sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return sess
}

func TestStoreSaveGetDelete(t *testing.T) {
	mr, store := newStoreTestRedis(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("token-1"))
	seedSession(t, store, hash, time.Now().Add(time.Hour).Unix())

	if !mr.Exists("cv:sess:u1") {
		t.Fatal("expected session key in redis")
	}

	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != "u1" || got.Username != "alice" || got.RefreshHash != hash {
		t.Fatal("stored session does not match")
	}

	if err := store.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "u1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}

	// Idempotent.
	if err := store.Delete(ctx, "u1"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
}

func TestStoreGetExpiredBlobDeletesKey(t *testing.T) {
	mr, store := newStoreTestRedis(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("token-1"))
	seedSession(t, store, hash, time.Now().Add(-time.Minute).Unix())

	if _, err := store.Get(ctx, "u1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil for expired session, got %v", err)
	}
	if mr.Exists("cv:sess:u1") {
		t.Fatal("expected expired session key to be deleted")
	}
}

func TestStoreRotateSuccess(t *testing.T) {
	_, store := newStoreTestRedis(t)
	ctx := context.Background()

	oldHash := sha256.Sum256([]byte("token-1"))
	newHash := sha256.Sum256([]byte("token-2"))
	seedSession(t, store, oldHash, time.Now().Add(time.Hour).Unix())

	nextExpiry := time.Now().Add(2 * time.Hour).Unix()
	sess, err := store.Rotate(ctx, "u1", oldHash, newHash, nextExpiry, 2*time.Hour)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if sess.RotationCount != 1 {
		t.Fatalf("expected rotation count 1, got %d", sess.RotationCount)
	}
	if sess.RefreshHash != newHash {
		t.Fatal("expected refresh hash to be swapped")
	}
	if sess.ExpiresAt != nextExpiry {
		t.Fatalf("expected expiry %d, got %d", nextExpiry, sess.ExpiresAt)
	}
	if sess.UserID != "u1" || sess.Username != "alice" {
		t.Fatal("rotation must preserve identity fields")
	}

	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get after rotate failed: %v", err)
	}
	if got.RefreshHash != newHash || got.RotationCount != 1 {
		t.Fatal("rotated session not persisted")
	}
}

func TestStoreRotateChainIncrementsCounter(t *testing.T) {
	_, store := newStoreTestRedis(t)
	ctx := context.Background()

	current := sha256.Sum256([]byte("token-0"))
	seedSession(t, store, current, time.Now().Add(time.Hour).Unix())

	for i := 1; i <= 5; i++ {
		next := sha256.Sum256([]byte{byte(i)})
		sess, err := store.Rotate(ctx, "u1", current, next, time.Now().Add(time.Hour).Unix(), time.Hour)
		if err != nil {
			t.Fatalf("rotation %d failed: %v", i, err)
		}
		if sess.RotationCount != uint32(i) {
			t.Fatalf("expected rotation count %d, got %d", i, sess.RotationCount)
		}
		current = next
	}
}

func TestStoreRotateMismatchKeepsSession(t *testing.T) {
	mr, store := newStoreTestRedis(t)
	ctx := context.Background()

	stored := sha256.Sum256([]byte("token-1"))
	stolen := sha256.Sum256([]byte("stolen"))
	next := sha256.Sum256([]byte("token-2"))
	seedSession(t, store, stored, time.Now().Add(time.Hour).Unix())

	_, err := store.Rotate(ctx, "u1", stolen, next, time.Now().Add(time.Hour).Unix(), time.Hour)
	if !errors.Is(err, ErrRefreshHashMismatch) {
		t.Fatalf("expected ErrRefreshHashMismatch, got %v", err)
	}

	// The live session must survive a replayed token.
	if !mr.Exists("cv:sess:u1") {
		t.Fatal("mismatch must not delete the session")
	}
	sess, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get after mismatch failed: %v", err)
	}
	if sess.RefreshHash != stored || sess.RotationCount != 0 {
		t.Fatal("mismatch must not modify the session")
	}
}

func TestStoreRotateNotFound(t *testing.T) {
	_, store := newStoreTestRedis(t)

	hash := sha256.Sum256([]byte("token-1"))
	_, err := store.Rotate(context.Background(), "ghost", hash, hash, time.Now().Add(time.Hour).Unix(), time.Hour)
	if !errors.Is(err, ErrRefreshSessionNotFound) {
		t.Fatalf("expected ErrRefreshSessionNotFound, got %v", err)
	}
	if !errors.Is(err, redis.Nil) {
		t.Fatal("not-found must also match redis.Nil")
	}
}

func TestStoreRotateExpiredDeletesKey(t *testing.T) {
	mr, store := newStoreTestRedis(t)

	hash := sha256.Sum256([]byte("token-1"))
	seedSession(t, store, hash, time.Now().Add(-time.Minute).Unix())

	_, err := store.Rotate(context.Background(), "u1", hash, hash, time.Now().Add(time.Hour).Unix(), time.Hour)
	if !errors.Is(err, ErrRefreshSessionExpired) {
		t.Fatalf("expected ErrRefreshSessionExpired, got %v", err)
	}
	if !errors.Is(err, redis.Nil) {
		t.Fatal("expired must also match redis.Nil")
	}
	if mr.Exists("cv:sess:u1") {
		t.Fatal("expected expired session key to be deleted")
	}
}

func TestStoreRotateCorruptBlob(t *testing.T) {
	mr, store := newStoreTestRedis(t)

	mr.Set("cv:sess:u1", "\x01garbage")

	hash := sha256.Sum256([]byte("token-1"))
	_, err := store.Rotate(context.Background(), "u1", hash, hash, time.Now().Add(time.Hour).Unix(), time.Hour)
	if !errors.Is(err, ErrRefreshSessionCorrupt) {
		t.Fatalf("expected ErrRefreshSessionCorrupt, got %v", err)
	}
}

func TestStoreTrackReplayAnomaly(t *testing.T) {
	mr, store := newStoreTestRedis(t)
	ctx := context.Background()

	if err := store.TrackReplayAnomaly(ctx, "u1", time.Hour); err != nil {
		t.Fatalf("TrackReplayAnomaly failed: %v", err)
	}
	if got := mr.TTL("cv:replay:u1"); got != time.Hour {
		t.Fatalf("expected TTL on first anomaly, got %v", got)
	}

	if err := store.TrackReplayAnomaly(ctx, "u1", time.Hour); err != nil {
		t.Fatalf("second TrackReplayAnomaly failed: %v", err)
	}
	val, err := mr.Get("cv:replay:u1")
	if err != nil {
		t.Fatalf("replay key missing: %v", err)
	}
	if val != "2" {
		t.Fatalf("expected counter 2, got %q", val)
	}
}

func TestStorePing(t *testing.T) {
	mr, store := newStoreTestRedis(t)

	if _, err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	mr.Close()
	if _, err := store.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

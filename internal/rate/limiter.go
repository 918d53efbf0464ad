package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle         bool
	EnableRefreshThrottle    bool
	MaxLoginAttempts         int
	LoginCooldownDuration    time.Duration
	EnableIdentifierThrottle bool
	EnableCreationIPThrottle bool
	CreationMaxAttempts      int
	CreationCooldown         time.Duration
	MaxRefreshAttempts       int
	RefreshCooldownDuration  time.Duration
}

// Limiter enforces per-identifier and per-IP rate limits for login,
// refresh, and account creation using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin checks whether the identifier+IP pair is within
// the login attempt budget. Returns an error if rate-limited.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if err := l.checkCounter(ctx, loginUserKey(identifier), l.config.MaxLoginAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login attempt for the identifier+IP pair.
// Both counters advance before either limit is evaluated, so one tripped
// identifier never hides attempts from the shared IP budget.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	idCount, err := l.incrementWithTTL(ctx, loginUserKey(identifier), l.config.LoginCooldownDuration)
	if err != nil {
		return err
	}

	var ipCount int64
	if l.config.EnableIPThrottle && ip != "" {
		ipCount, err = l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginCooldownDuration)
		if err != nil {
			return err
		}
	}

	if idCount > int64(l.config.MaxLoginAttempts) || ipCount > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	return nil
}

// ResetLogin clears the failed-login counter for the identifier+IP pair.
// Called after successful login or password change.
func (l *Limiter) ResetLogin(ctx context.Context, identifier, ip string) error {
	keys := []string{loginUserKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// CheckRefresh enforces the refresh limit by incrementing the per-user counter
// and applying cooldown TTL.
func (l *Limiter) CheckRefresh(ctx context.Context, userID string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, refreshKey(userID), l.config.RefreshCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}

	return nil
}

// CheckAccountCreation enforces the signup budget for the identifier+IP pair.
// Each call counts as an attempt regardless of outcome.
func (l *Limiter) CheckAccountCreation(ctx context.Context, identifier, ip string) error {
	if l.config.EnableIdentifierThrottle {
		count, err := l.incrementWithTTL(ctx, accountKey(identifier), l.config.CreationCooldown)
		if err != nil {
			return err
		}
		if count > int64(l.config.CreationMaxAttempts) {
			return ErrRateLimited
		}
	}

	if l.config.EnableCreationIPThrottle && ip != "" {
		count, err := l.incrementWithTTL(ctx, accountIPKey(ip), l.config.CreationCooldown)
		if err != nil {
			return err
		}
		if count > int64(l.config.CreationMaxAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// GetLoginAttempts returns the current attempt counter for an identifier.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) GetLoginAttempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, loginUserKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count > int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func loginUserKey(identifier string) string {
	return "cl:login:id:" + identifier
}

func loginIPKey(ip string) string {
	return "cl:login:ip:" + ip
}

func refreshKey(userID string) string {
	return "cl:refresh:uid:" + userID
}

func accountKey(identifier string) string {
	return "cl:signup:id:" + identifier
}

func accountIPKey(ip string) string {
	return "cl:signup:ip:" + ip
}

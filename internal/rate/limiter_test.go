package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, New(client, cfg)
}

func loginConfig() Config {
	return Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	}
}

func TestLoginBudgetAndReset(t *testing.T) {
	_, l := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", "1.2.3.4"); err != nil {
			t.Fatalf("check %d failed: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "alice", "1.2.3.4"); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}

	// The fourth failure exceeds the budget.
	if err := l.IncrementLogin(ctx, "alice", "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on check, got %v", err)
	}

	attempts, err := l.GetLoginAttempts(ctx, "alice")
	if err != nil {
		t.Fatalf("GetLoginAttempts failed: %v", err)
	}
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}

	if err := l.ResetLogin(ctx, "alice", "1.2.3.4"); err != nil {
		t.Fatalf("ResetLogin failed: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", "1.2.3.4"); err != nil {
		t.Fatalf("expected clean slate after reset, got %v", err)
	}
}

func TestLoginIPBudgetSharedAcrossIdentifiers(t *testing.T) {
	_, l := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = l.IncrementLogin(ctx, "alice", "1.2.3.4")
	}

	// Same IP, different identifier: the IP counter trips the limit.
	if err := l.CheckLogin(ctx, "bob", "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited via IP counter, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", "5.6.7.8"); err != nil {
		t.Fatalf("different IP should pass: %v", err)
	}
}

func TestLoginIPThrottleDisabled(t *testing.T) {
	cfg := loginConfig()
	cfg.EnableIPThrottle = false
	mr, l := newTestLimiter(t, cfg)
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "alice", "1.2.3.4"); err != nil {
		t.Fatalf("IncrementLogin failed: %v", err)
	}
	if mr.Exists("cl:login:ip:1.2.3.4") {
		t.Fatal("IP key must not be written when the IP throttle is off")
	}
}

func TestLoginWindowExpiry(t *testing.T) {
	mr, l := newTestLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = l.IncrementLogin(ctx, "alice", "")
	}
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected budget to reset after cooldown, got %v", err)
	}
}

func TestRefreshThrottle(t *testing.T) {
	_, l := newTestLimiter(t, Config{
		EnableRefreshThrottle:   true,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	if err := l.CheckRefresh(ctx, "u1"); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if err := l.CheckRefresh(ctx, "u1"); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	if err := l.CheckRefresh(ctx, "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// Other users keep their own budget.
	if err := l.CheckRefresh(ctx, "u2"); err != nil {
		t.Fatalf("unrelated user throttled: %v", err)
	}
}

func TestRefreshThrottleDisabled(t *testing.T) {
	_, l := newTestLimiter(t, Config{EnableRefreshThrottle: false})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if err := l.CheckRefresh(ctx, "u1"); err != nil {
			t.Fatalf("refresh %d failed with throttle disabled: %v", i, err)
		}
	}
}

func TestAccountCreationBudget(t *testing.T) {
	_, l := newTestLimiter(t, Config{
		EnableIdentifierThrottle: true,
		EnableCreationIPThrottle: true,
		CreationMaxAttempts:      2,
		CreationCooldown:         time.Minute,
	})
	ctx := context.Background()

	if err := l.CheckAccountCreation(ctx, "alice@example.com", "1.2.3.4"); err != nil {
		t.Fatalf("first signup check failed: %v", err)
	}
	if err := l.CheckAccountCreation(ctx, "alice@example.com", "1.2.3.4"); err != nil {
		t.Fatalf("second signup check failed: %v", err)
	}
	if err := l.CheckAccountCreation(ctx, "alice@example.com", "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestAccountCreationIPBudgetSharedAcrossIdentifiers(t *testing.T) {
	_, l := newTestLimiter(t, Config{
		EnableIdentifierThrottle: true,
		EnableCreationIPThrottle: true,
		CreationMaxAttempts:      2,
		CreationCooldown:         time.Minute,
	})
	ctx := context.Background()

	_ = l.CheckAccountCreation(ctx, "alice@example.com", "1.2.3.4")
	_ = l.CheckAccountCreation(ctx, "bob@example.com", "1.2.3.4")

	// Fresh identifier, exhausted IP.
	if err := l.CheckAccountCreation(ctx, "carol@example.com", "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited via signup IP counter, got %v", err)
	}
	if err := l.CheckAccountCreation(ctx, "carol@example.com", "5.6.7.8"); err != nil {
		t.Fatalf("different IP should pass: %v", err)
	}
}

func TestAccountCreationIPThrottleIndependentOfLoginFlag(t *testing.T) {
	mr, l := newTestLimiter(t, Config{
		EnableIPThrottle:         true,
		EnableIdentifierThrottle: true,
		CreationMaxAttempts:      2,
		CreationCooldown:         time.Minute,
	})
	ctx := context.Background()

	// The login IP flag does not turn on signup IP accounting.
	if err := l.CheckAccountCreation(ctx, "alice@example.com", "1.2.3.4"); err != nil {
		t.Fatalf("signup check failed: %v", err)
	}
	if mr.Exists("cl:signup:ip:1.2.3.4") {
		t.Fatal("signup IP key must not be written when the creation IP throttle is off")
	}
}

func TestUnavailableRedis(t *testing.T) {
	mr, l := newTestLimiter(t, loginConfig())
	mr.Close()
	ctx := context.Background()

	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := l.IncrementLogin(ctx, "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

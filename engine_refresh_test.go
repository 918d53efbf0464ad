package clipauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clipverse/clipauth/internal"
	"github.com/clipverse/clipauth/session"
)

func TestRefreshRotatesTokens(t *testing.T) {
	up := newSeededUserProvider(t)
	engine, _, done := newAuthEngine(t, authTestConfig(), up)
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	access, refresh, err := engine.Refresh(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected both tokens from refresh")
	}
	if refresh == result.RefreshToken {
		t.Fatal("expected a new refresh token after rotation")
	}

	auth, err := engine.ValidateAccess(ctx, access)
	if err != nil {
		t.Fatalf("ValidateAccess on rotated access token failed: %v", err)
	}
	if auth.UserID != "u1" {
		t.Fatalf("unexpected user id %q", auth.UserID)
	}
}

func TestRefreshChainRotationCountAdvances(t *testing.T) {
	up := newSeededUserProvider(t)
	engine, _, done := newAuthEngine(t, authTestConfig(), up)
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	refresh := result.RefreshToken
	for i := 0; i < 3; i++ {
		_, refresh, err = engine.Refresh(ctx, refresh)
		if err != nil {
			t.Fatalf("refresh %d failed: %v", i+1, err)
		}
	}

	sess, err := engine.sessionStore.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("session get failed: %v", err)
	}
	if sess.RotationCount != 3 {
		t.Fatalf("expected rotation count 3, got %d", sess.RotationCount)
	}
}

func TestRefreshReplayDetectedSessionSurvives(t *testing.T) {
	up := newSeededUserProvider(t)
	engine, rdb, done := newAuthEngine(t, authTestConfig(), up)
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	_, current, err := engine.Refresh(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	// Replaying the consumed token is rejected without revoking the session.
	_, _, err = engine.Refresh(ctx, result.RefreshToken)
	if !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}
	if rdb.Exists(ctx, "cv:sess:u1").Val() != 1 {
		t.Fatal("expected session to survive replay")
	}
	if rdb.Exists(ctx, "cv:replay:u1").Val() != 1 {
		t.Fatal("expected replay anomaly marker")
	}

	// The legitimate holder keeps rotating.
	if _, _, err := engine.Refresh(ctx, current); err != nil {
		t.Fatalf("refresh with current token failed: %v", err)
	}
}

func TestRefreshAfterLogout(t *testing.T) {
	up := newSeededUserProvider(t)
	engine, _, done := newAuthEngine(t, authTestConfig(), up)
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := engine.Logout(ctx, "u1"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	_, _, err = engine.Refresh(ctx, result.RefreshToken)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRefreshExpiredSessionBlob(t *testing.T) {
	up := newSeededUserProvider(t)
	engine, rdb, done := newAuthEngine(t, authTestConfig(), up)
	defer done()

	ctx := context.Background()
	token, err := engine.jwtManager.IssueRefresh("u1")
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}

	now := time.Now()
	sess := &session.Session{
		UserID:      "u1",
		Username:    "alice",
		RefreshHash: internal.HashRefreshToken(token),
		CreatedAt:   now.Add(-2 * time.Hour).Unix(),
		ExpiresAt:   now.Add(-time.Minute).Unix(),
	}
	if err := engine.sessionStore.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("seed session failed: %v", err)
	}

	_, _, err = engine.Refresh(ctx, token)
	if !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
	if rdb.Exists(ctx, "cv:sess:u1").Val() != 0 {
		t.Fatal("expected expired session to be deleted")
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	up := newSeededUserProvider(t)
	engine, _, done := newAuthEngine(t, authTestConfig(), up)
	defer done()

	_, _, err := engine.Refresh(context.Background(), "not-a-token")
	if !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
	if up.getByIDCalls != 0 {
		t.Fatal("expected no provider lookup for an unverifiable token")
	}
}

func TestRefreshUnknownUser(t *testing.T) {
	up := newSeededUserProvider(t)
	engine, _, done := newAuthEngine(t, authTestConfig(), up)
	defer done()

	// Validly signed token for an identity the provider no longer knows.
	token, err := engine.jwtManager.IssueRefresh("ghost")
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}

	_, _, err = engine.Refresh(context.Background(), token)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRefreshRateLimited(t *testing.T) {
	up := newSeededUserProvider(t)
	cfg := authTestConfig()
	cfg.Security.MaxRefreshAttempts = 2
	cfg.Security.RefreshCooldownDuration = time.Minute
	engine, _, done := newAuthEngine(t, cfg, up)
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	refresh := result.RefreshToken
	for i := 0; i < 2; i++ {
		_, refresh, err = engine.Refresh(ctx, refresh)
		if err != nil {
			t.Fatalf("refresh %d failed: %v", i+1, err)
		}
	}

	_, _, err = engine.Refresh(ctx, refresh)
	if !errors.Is(err, ErrRefreshRateLimited) {
		t.Fatalf("expected ErrRefreshRateLimited, got %v", err)
	}
}

func TestRefreshReplayTrackingDisabled(t *testing.T) {
	up := newSeededUserProvider(t)
	cfg := authTestConfig()
	cfg.Session.EnableReplayTracking = false
	engine, rdb, done := newAuthEngine(t, cfg, up)
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, _, err := engine.Refresh(ctx, result.RefreshToken); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	_, _, err = engine.Refresh(ctx, result.RefreshToken)
	if !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}
	if rdb.Exists(ctx, "cv:replay:u1").Val() != 0 {
		t.Fatal("expected no replay marker when tracking is disabled")
	}
}

package clipauth

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/clipverse/clipauth/internal"
	internalaudit "github.com/clipverse/clipauth/internal/audit"
	"github.com/clipverse/clipauth/internal/rate"
	"github.com/clipverse/clipauth/jwt"
	"github.com/clipverse/clipauth/password"
	"github.com/clipverse/clipauth/session"
	"github.com/redis/go-redis/v9"
)

// Engine defines a public type used by clipauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Hasher
	jwtManager   *jwt.Manager
	userProvider UserProvider
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, identifier, passwordPlain string) (*LoginResult, error) {
	ip := clientIPFromContext(ctx)
	if e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, identifier, ip); err != nil {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
				}
			})
			e.emitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{
					"identifier": identifier,
				}
			})
			return nil, ErrLoginRateLimited
		}
	}
	if identifier == "" || passwordPlain == "" {
		if err := e.recordLoginFailure(ctx, identifier, ip); err != nil {
			return nil, err
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "empty_input",
			}
		})
		return nil, ErrInvalidCredentials
	}

	user, err := e.userProvider.GetUserByIdentifier(identifier)
	if err != nil {
		if err := e.recordLoginFailure(ctx, identifier, ip); err != nil {
			return nil, err
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrUserNotFound, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "user_not_found",
			}
		})
		return nil, ErrUserNotFound
	}

	ok, err := e.passwordHash.Verify(passwordPlain, user.PasswordHash)
	if err != nil || !ok {
		if err := e.recordLoginFailure(ctx, identifier, ip); err != nil {
			return nil, err
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}
	passwordPlain = ""

	refresh, err := e.jwtManager.IssueRefresh(user.UserID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "issue_refresh_failed",
			}
		})
		return nil, err
	}

	now := time.Now()
	lifetime := e.sessionLifetime()
	sess := &session.Session{
		UserID:        user.UserID,
		Username:      user.Username,
		RotationCount: 0,
		RefreshHash:   internal.HashRefreshToken(refresh),
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(lifetime).Unix(),
	}

	// Replaces any previous session: one live session per user.
	if err := e.sessionStore.Save(ctx, sess, lifetime); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "session_save_failed",
			}
		})
		return nil, err
	}

	access, err := e.jwtManager.IssueAccess(user.UserID, user.Username, user.Email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "issue_access_failed",
			}
		})
		return nil, err
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, identifier, ip); err != nil {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, user.UserID, ErrLoginRateLimited, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
					"reason":     "reset_limiter_failed",
				}
			})
			return nil, ErrLoginRateLimited
		}
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, nil, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
		}
	})

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.Profile(),
	}, nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, identifier, ip string) error {
	if e.rateLimiter == nil {
		return nil
	}
	if err := e.rateLimiter.IncrementLogin(ctx, identifier, ip); err != nil {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		e.emitRateLimit(ctx, "login", func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		return ErrLoginRateLimited
	}
	return nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	claims, err := e.jwtManager.VerifyRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "verify_failed",
			}
		})
		return "", "", ErrRefreshInvalid
	}
	userID := claims.UID

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckRefresh(ctx, userID); err != nil {
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, userID, ErrRefreshRateLimited, nil)
			e.emitRateLimit(ctx, "refresh", func() map[string]string {
				return map[string]string{
					"user_id": userID,
				}
			})
			return "", "", ErrRefreshRateLimited
		}
	}

	user, err := e.userProvider.GetUserByID(userID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, ErrUserNotFound, func() map[string]string {
			return map[string]string{
				"reason": "user_not_found",
			}
		})
		return "", "", ErrUserNotFound
	}

	next, err := e.jwtManager.IssueRefresh(userID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_next_failed",
			}
		})
		return "", "", err
	}

	lifetime := e.sessionLifetime()
	sess, err := e.sessionStore.Rotate(
		ctx,
		userID,
		internal.HashRefreshToken(refreshToken),
		internal.HashRefreshToken(next),
		time.Now().Add(lifetime).Unix(),
		lifetime,
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			e.metricInc(MetricRefreshReuseDetected)
			if e.config.Session.EnableReplayTracking {
				if trackErr := e.sessionStore.TrackReplayAnomaly(ctx, userID, lifetime); trackErr != nil {
					log.Print("clipauth: replay anomaly tracking failed")
				}
			}
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, userID, ErrRefreshReuse, nil)
			return "", "", ErrRefreshReuse
		case errors.Is(err, session.ErrRefreshSessionExpired):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, ErrRefreshInvalid, func() map[string]string {
				return map[string]string{
					"reason": "session_expired",
				}
			})
			return "", "", ErrRefreshInvalid
		case errors.Is(err, redis.Nil):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, ErrSessionNotFound, func() map[string]string {
				return map[string]string{
					"reason": "session_not_found",
				}
			})
			return "", "", ErrSessionNotFound
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, err, func() map[string]string {
				return map[string]string{
					"reason": "rotate_failed",
				}
			})
			return "", "", err
		}
	}

	access, err := e.jwtManager.IssueAccess(user.UserID, user.Username, user.Email)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_access_failed",
			}
		})
		return "", "", err
	}

	e.metricInc(MetricRefreshSuccess)
	rotation := sess.RotationCount
	e.emitAudit(ctx, auditEventRefreshSuccess, true, userID, nil, func() map[string]string {
		return map[string]string{
			"rotation": strconv.FormatUint(uint64(rotation), 10),
		}
	})

	return access, next, nil
}

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	claims, err := e.jwtManager.VerifyAccess(tokenStr)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &AuthResult{
		UserID:   claims.UID,
		Username: claims.Username,
		Email:    claims.Email,
	}, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	// Deleting an absent session still reports success: logout is idempotent.
	err := e.sessionStore.Delete(ctx, userID)
	if err == nil {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, auditEventLogoutSession, err == nil, userID, err, nil)
	return err
}

// LogoutByAccessToken describes the logoutbyaccesstoken operation and its observable behavior.
//
// LogoutByAccessToken may return an error when input validation, dependency calls, or security checks fail.
// LogoutByAccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LogoutByAccessToken(ctx context.Context, tokenStr string) error {
	claims, err := e.jwtManager.VerifyAccess(tokenStr)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "invalid_access_token",
			}
		})
		return ErrTokenInvalid
	}

	return e.Logout(ctx, claims.UID)
}

func (e *Engine) sessionLifetime() time.Duration {
	return e.config.JWT.RefreshTTL
}

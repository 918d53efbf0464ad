package clipauth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/clipverse/clipauth/internal"
	"github.com/clipverse/clipauth/internal/rate"
	"github.com/clipverse/clipauth/session"
)

// CreateAccount describes the createaccount operation and its observable behavior.
//
// CreateAccount may return an error when input validation, dependency calls, or security checks fail.
// CreateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResult, error) {
	if !e.config.Account.Enabled {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", ErrAccountCreationDisabled, func() map[string]string {
			return map[string]string{
				"reason": "feature_disabled",
			}
		})
		return nil, ErrAccountCreationDisabled
	}
	if e.passwordHash == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)

	if req.Username == "" || req.Email == "" || req.FullName == "" {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", ErrAccountCreationInvalid, func() map[string]string {
			return map[string]string{
				"reason": "empty_field",
			}
		})
		return nil, ErrAccountCreationInvalid
	}
	if req.Password == "" {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"identifier": req.Username,
				"reason":     "empty_password",
			}
		})
		return nil, ErrPasswordPolicy
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckAccountCreation(ctx, req.Username, clientIPFromContext(ctx)); err != nil {
			mapped := mapAccountLimiterError(err)
			if errors.Is(mapped, ErrAccountCreationRateLimited) {
				e.metricInc(MetricAccountCreationRateLimited)
				e.emitAudit(ctx, auditEventAccountCreationRateLimited, false, "", mapped, func() map[string]string {
					return map[string]string{
						"identifier": req.Username,
					}
				})
				e.emitRateLimit(ctx, "account_creation", func() map[string]string {
					return map[string]string{
						"identifier": req.Username,
					}
				})
			}
			return nil, mapped
		}
	}

	passwordHash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"identifier": req.Username,
				"reason":     "hash_policy",
			}
		})
		return nil, ErrPasswordPolicy
	}

	created, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		Username:      req.Username,
		Email:         req.Email,
		FullName:      req.FullName,
		PasswordHash:  passwordHash,
		AvatarURL:     req.AvatarURL,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateIdentifier) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, "", ErrAccountExists, func() map[string]string {
				return map[string]string{
					"identifier": req.Username,
				}
			})
			return nil, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", err, func() map[string]string {
			return map[string]string{
				"identifier": req.Username,
				"reason":     "provider_create_failed",
			}
		})
		return nil, err
	}

	if created.UserID == "" {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", ErrAccountCreationUnavailable, func() map[string]string {
			return map[string]string{
				"identifier": req.Username,
				"reason":     "missing_user_id",
			}
		})
		return nil, ErrAccountCreationUnavailable
	}

	result := &CreateAccountResult{
		User: created.Profile(),
	}

	if e.config.Account.AutoLogin {
		accessToken, refreshToken, err := e.issueSessionTokens(ctx, created)
		if err != nil {
			e.emitAudit(ctx, auditEventAccountCreationSuccess, false, created.UserID, err, func() map[string]string {
				return map[string]string{
					"identifier": req.Username,
					"reason":     "auto_login_failed",
				}
			})
			return result, err
		}
		result.AccessToken = accessToken
		result.RefreshToken = refreshToken
	}

	req.Password = ""
	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreationSuccess, true, created.UserID, nil, func() map[string]string {
		return map[string]string{
			"identifier": req.Username,
		}
	})
	return result, nil
}

func (e *Engine) issueSessionTokens(ctx context.Context, user UserRecord) (string, string, error) {
	refreshToken, err := e.jwtManager.IssueRefresh(user.UserID)
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	lifetime := e.sessionLifetime()
	sess := &session.Session{
		UserID:        user.UserID,
		Username:      user.Username,
		RotationCount: 0,
		RefreshHash:   internal.HashRefreshToken(refreshToken),
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(lifetime).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess, lifetime); err != nil {
		return "", "", err
	}
	e.metricInc(MetricSessionCreated)

	accessToken, err := e.jwtManager.IssueAccess(user.UserID, user.Username, user.Email)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e.passwordHash == nil {
		return ErrEngineNotReady
	}
	if userID == "" || oldPassword == "" || newPassword == "" {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "invalid_input",
			}
		})
		return ErrPasswordPolicy
	}

	user, err := e.userProvider.GetUserByID(userID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, ErrUserNotFound, func() map[string]string {
			return map[string]string{
				"reason": "user_not_found",
			}
		})
		return ErrUserNotFound
	}

	oldOK, err := e.passwordHash.Verify(oldPassword, user.PasswordHash)
	if err != nil || !oldOK {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, userID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	samePassword, err := e.passwordHash.Verify(newPassword, user.PasswordHash)
	if err == nil && samePassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, userID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "hash_policy",
			}
		})
		return ErrPasswordPolicy
	}

	if err := e.userProvider.UpdatePasswordHash(userID, newHash); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, err, func() map[string]string {
			return map[string]string{
				"reason": "update_hash_failed",
			}
		})
		return err
	}

	if e.config.Security.RevokeSessionOnPasswordChange {
		if err := e.sessionStore.Delete(ctx, userID); err != nil {
			log.Print("clipauth: session invalidation failed after password change")
			e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, ErrSessionInvalidationFailed, func() map[string]string {
				return map[string]string{
					"reason": "session_invalidation_failed",
				}
			})
			return errors.Join(ErrSessionInvalidationFailed, err)
		}
		e.metricInc(MetricSessionRevoked)
	}

	if e.rateLimiter != nil {
		// Limiter reset is best-effort and must not block successful password change.
		if err := e.rateLimiter.ResetLogin(ctx, user.Username, clientIPFromContext(ctx)); err != nil {
			log.Print("clipauth: login limiter reset failed after password change")
		}
	}

	oldPassword = ""
	newPassword = ""
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, nil, nil)

	return nil
}

// CurrentUser describes the currentuser operation and its observable behavior.
//
// CurrentUser may return an error when input validation, dependency calls, or security checks fail.
// CurrentUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CurrentUser(ctx context.Context, userID string) (UserProfile, error) {
	if userID == "" {
		return UserProfile{}, ErrUserNotFound
	}
	user, err := e.userProvider.GetUserByID(userID)
	if err != nil {
		return UserProfile{}, ErrUserNotFound
	}
	return user.Profile(), nil
}

// UpdateProfile describes the updateprofile operation and its observable behavior.
//
// UpdateProfile may return an error when input validation, dependency calls, or security checks fail.
// UpdateProfile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (UserProfile, error) {
	if e.userProvider == nil {
		return UserProfile{}, ErrEngineNotReady
	}
	if userID == "" {
		return UserProfile{}, ErrUserNotFound
	}
	if update == (ProfileUpdate{}) {
		e.emitAudit(ctx, auditEventProfileUpdateFailure, false, userID, ErrProfileUpdateInvalid, func() map[string]string {
			return map[string]string{
				"reason": "empty_update",
			}
		})
		return UserProfile{}, ErrProfileUpdateInvalid
	}

	updated, err := e.userProvider.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateIdentifier) {
			e.emitAudit(ctx, auditEventProfileUpdateFailure, false, userID, ErrAccountExists, nil)
			return UserProfile{}, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventProfileUpdateFailure, false, userID, err, nil)
		return UserProfile{}, err
	}

	e.metricInc(MetricProfileUpdateSuccess)
	e.emitAudit(ctx, auditEventProfileUpdateSuccess, true, userID, nil, nil)
	return updated.Profile(), nil
}

func mapAccountLimiterError(err error) error {
	switch {
	case errors.Is(err, rate.ErrRateLimited):
		return ErrAccountCreationRateLimited
	default:
		return ErrAccountCreationUnavailable
	}
}

package test

import (
	"context"
	"testing"

	clipauth "github.com/clipverse/clipauth"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = clipauth.New

	var _ *clipauth.Engine
	var _ clipauth.Config
	var _ clipauth.AuthResult
	var _ clipauth.LoginResult
	var _ clipauth.CreateAccountRequest
	var _ clipauth.CreateAccountResult
	var _ clipauth.UserProvider
	var _ clipauth.AuditSink

	var _ error = clipauth.ErrUnauthorized
	var _ error = clipauth.ErrSessionNotFound
	var _ error = clipauth.ErrInvalidCredentials
	var _ error = clipauth.ErrRefreshReuse
	var _ error = clipauth.ErrRefreshInvalid
	var _ error = clipauth.ErrTokenInvalid

	var _ func(*clipauth.Engine, context.Context, string, string) (*clipauth.LoginResult, error) = (*clipauth.Engine).Login
	var _ func(*clipauth.Engine, context.Context, string) (string, string, error) = (*clipauth.Engine).Refresh
	var _ func(*clipauth.Engine, context.Context, string) (*clipauth.AuthResult, error) = (*clipauth.Engine).ValidateAccess
	var _ func(*clipauth.Engine, context.Context, string) error = (*clipauth.Engine).Logout
	var _ func(*clipauth.Engine, context.Context, string, string, string) error = (*clipauth.Engine).ChangePassword
}

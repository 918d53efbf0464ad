package clipauth

import (
	"context"
	"io"

	internalaudit "github.com/clipverse/clipauth/internal/audit"
)

// UserProvider is the primary interface that callers must implement to
// integrate clipauth with their user database. It covers credential lookup,
// account creation, password updates, and profile changes.
type UserProvider interface {
	GetUserByIdentifier(identifier string) (UserRecord, error)
	GetUserByID(userID string) (UserRecord, error)
	UpdatePasswordHash(userID string, newHash string) error
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (UserRecord, error)
}

// UserRecord is the full account record returned by [UserProvider].
// It carries the credential hash alongside the public profile fields.
type UserRecord struct {
	UserID        string
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	WatchHistory  []string
	CreatedAt     int64
}

// ProfileUpdate is the input for [UserProvider.UpdateProfile]. Empty
// fields are left unchanged.
type ProfileUpdate struct {
	FullName      string
	Email         string
	AvatarURL     string
	CoverImageURL string
}

// UserProfile is the public projection of a [UserRecord]. It never
// carries the password hash.
type UserProfile struct {
	UserID        string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	AvatarURL     string `json:"avatar,omitempty"`
	CoverImageURL string `json:"coverImage,omitempty"`

	// WatchHistory carries previously viewed content IDs. The engine never
	// writes it; it is populated and maintained by the host application.
	WatchHistory []string `json:"watchHistory,omitempty"`
}

// Profile returns the public projection of the record.
func (u UserRecord) Profile() UserProfile {
	return UserProfile{
		UserID:        u.UserID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		WatchHistory:  u.WatchHistory,
	}
}

// AuthResult is returned by [Engine.ValidateAccess]. It contains the
// authenticated user's identity as carried by the access token.
type AuthResult struct {
	UserID   string
	Username string
	Email    string
}

// LoginResult is returned by [Engine.Login]. It includes the issued
// token pair and the public profile of the authenticated user.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         UserProfile
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
}

// CreateAccountRequest is the input for [Engine.CreateAccount].
// Username, Email, FullName, and Password are required.
type CreateAccountRequest struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// CreateAccountResult is returned by [Engine.CreateAccount]. It includes
// the new user's profile and, when AutoLogin is enabled, access+refresh
// tokens.
type CreateAccountResult struct {
	User         UserProfile
	AccessToken  string
	RefreshToken string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	clipauth "github.com/clipverse/clipauth"
)

// Provider is an in-memory [clipauth.UserProvider] intended for tests and
// local development. All operations are safe for concurrent use.
type Provider struct {
	mu      sync.RWMutex
	byID    map[string]clipauth.UserRecord
	byName  map[string]string
	byEmail map[string]string
}

// New creates an empty in-memory provider.
func New() *Provider {
	return &Provider{
		byID:    make(map[string]clipauth.UserRecord),
		byName:  make(map[string]string),
		byEmail: make(map[string]string),
	}
}

// Seed inserts a record directly, bypassing duplicate checks. Test helper.
func (p *Provider) Seed(rec clipauth.UserRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[rec.UserID] = rec
	p.byName[strings.ToLower(rec.Username)] = rec.UserID
	p.byEmail[strings.ToLower(rec.Email)] = rec.UserID
}

func (p *Provider) GetUserByIdentifier(identifier string) (clipauth.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	key := strings.ToLower(identifier)
	id, ok := p.byName[key]
	if !ok {
		id, ok = p.byEmail[key]
	}
	if !ok {
		return clipauth.UserRecord{}, clipauth.ErrUserNotFound
	}
	return p.byID[id], nil
}

func (p *Provider) GetUserByID(userID string) (clipauth.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.byID[userID]
	if !ok {
		return clipauth.UserRecord{}, clipauth.ErrUserNotFound
	}
	return rec, nil
}

func (p *Provider) UpdatePasswordHash(userID string, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.byID[userID]
	if !ok {
		return clipauth.ErrUserNotFound
	}
	rec.PasswordHash = newHash
	p.byID[userID] = rec
	return nil
}

func (p *Provider) CreateUser(ctx context.Context, input clipauth.CreateUserInput) (clipauth.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	nameKey := strings.ToLower(input.Username)
	emailKey := strings.ToLower(input.Email)
	if _, exists := p.byName[nameKey]; exists {
		return clipauth.UserRecord{}, clipauth.ErrProviderDuplicateIdentifier
	}
	if _, exists := p.byEmail[emailKey]; exists {
		return clipauth.UserRecord{}, clipauth.ErrProviderDuplicateIdentifier
	}

	rec := clipauth.UserRecord{
		UserID:        uuid.NewString(),
		Username:      input.Username,
		Email:         input.Email,
		FullName:      input.FullName,
		PasswordHash:  input.PasswordHash,
		AvatarURL:     input.AvatarURL,
		CoverImageURL: input.CoverImageURL,
		CreatedAt:     time.Now().Unix(),
	}
	p.byID[rec.UserID] = rec
	p.byName[nameKey] = rec.UserID
	p.byEmail[emailKey] = rec.UserID
	return rec, nil
}

func (p *Provider) UpdateProfile(ctx context.Context, userID string, update clipauth.ProfileUpdate) (clipauth.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.byID[userID]
	if !ok {
		return clipauth.UserRecord{}, clipauth.ErrUserNotFound
	}

	if update.Email != "" {
		emailKey := strings.ToLower(update.Email)
		if existing, taken := p.byEmail[emailKey]; taken && existing != userID {
			return clipauth.UserRecord{}, clipauth.ErrProviderDuplicateIdentifier
		}
		delete(p.byEmail, strings.ToLower(rec.Email))
		rec.Email = update.Email
		p.byEmail[emailKey] = userID
	}
	if update.FullName != "" {
		rec.FullName = update.FullName
	}
	if update.AvatarURL != "" {
		rec.AvatarURL = update.AvatarURL
	}
	if update.CoverImageURL != "" {
		rec.CoverImageURL = update.CoverImageURL
	}

	p.byID[userID] = rec
	return rec, nil
}

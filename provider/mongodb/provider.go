package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	clipauth "github.com/clipverse/clipauth"
)

// lookupTimeout bounds the non-context provider calls.
const lookupTimeout = 5 * time.Second

type userDocument struct {
	ID            string   `bson:"_id"`
	Username      string   `bson:"username"`
	Email         string   `bson:"email"`
	FullName      string   `bson:"fullName"`
	PasswordHash  string   `bson:"passwordHash"`
	AvatarURL     string   `bson:"avatar,omitempty"`
	CoverImageURL string   `bson:"coverImage,omitempty"`
	WatchHistory  []string `bson:"watchHistory,omitempty"`
	CreatedAt     int64    `bson:"createdAt"`
	UpdatedAt     int64    `bson:"updatedAt"`
}

// Provider is a MongoDB-backed [clipauth.UserProvider] storing one document
// per user with unique username and email indexes.
type Provider struct {
	users *mongo.Collection
}

// New creates a MongoDB provider over the given collection. EnsureIndexes
// should be called once at startup.
func New(users *mongo.Collection) *Provider {
	return &Provider{users: users}
}

// EnsureIndexes creates the unique username and email indexes the duplicate
// detection relies on.
func (p *Provider) EnsureIndexes(ctx context.Context) error {
	_, err := p.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}

func (p *Provider) GetUserByIdentifier(identifier string) (clipauth.UserRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	key := strings.ToLower(identifier)
	filter := bson.M{"$or": []bson.M{
		{"username": key},
		{"email": key},
	}}

	var doc userDocument
	if err := p.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return clipauth.UserRecord{}, clipauth.ErrUserNotFound
		}
		return clipauth.UserRecord{}, err
	}
	return doc.record(), nil
}

func (p *Provider) GetUserByID(userID string) (clipauth.UserRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	var doc userDocument
	if err := p.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return clipauth.UserRecord{}, clipauth.ErrUserNotFound
		}
		return clipauth.UserRecord{}, err
	}
	return doc.record(), nil
}

func (p *Provider) UpdatePasswordHash(userID string, newHash string) error {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	res, err := p.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"passwordHash": newHash,
		"updatedAt":    time.Now().Unix(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return clipauth.ErrUserNotFound
	}
	return nil
}

func (p *Provider) CreateUser(ctx context.Context, input clipauth.CreateUserInput) (clipauth.UserRecord, error) {
	now := time.Now().Unix()
	doc := userDocument{
		ID:            uuid.NewString(),
		Username:      strings.ToLower(input.Username),
		Email:         strings.ToLower(input.Email),
		FullName:      input.FullName,
		PasswordHash:  input.PasswordHash,
		AvatarURL:     input.AvatarURL,
		CoverImageURL: input.CoverImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := p.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return clipauth.UserRecord{}, clipauth.ErrProviderDuplicateIdentifier
		}
		return clipauth.UserRecord{}, err
	}
	return doc.record(), nil
}

func (p *Provider) UpdateProfile(ctx context.Context, userID string, update clipauth.ProfileUpdate) (clipauth.UserRecord, error) {
	set := bson.M{"updatedAt": time.Now().Unix()}
	if update.FullName != "" {
		set["fullName"] = update.FullName
	}
	if update.Email != "" {
		set["email"] = strings.ToLower(update.Email)
	}
	if update.AvatarURL != "" {
		set["avatar"] = update.AvatarURL
	}
	if update.CoverImageURL != "" {
		set["coverImage"] = update.CoverImageURL
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err := p.users.FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return clipauth.UserRecord{}, clipauth.ErrUserNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return clipauth.UserRecord{}, clipauth.ErrProviderDuplicateIdentifier
		}
		return clipauth.UserRecord{}, err
	}
	return doc.record(), nil
}

func (d userDocument) record() clipauth.UserRecord {
	return clipauth.UserRecord{
		UserID:        d.ID,
		Username:      d.Username,
		Email:         d.Email,
		FullName:      d.FullName,
		PasswordHash:  d.PasswordHash,
		AvatarURL:     d.AvatarURL,
		CoverImageURL: d.CoverImageURL,
		WatchHistory:  d.WatchHistory,
		CreatedAt:     d.CreatedAt,
	}
}

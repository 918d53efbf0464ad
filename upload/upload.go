// Package upload abstracts media storage for avatar and cover images.
// Two backends are provided: local disk for development and Google Cloud
// Storage for production.
package upload

import (
	"context"
	"io"
)

// Uploader stores an object and returns the public URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error)
}

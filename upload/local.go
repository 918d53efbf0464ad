package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalDisk stores uploads under a directory and serves them from BaseURL.
// Intended for development; production deployments should use [GCS].
type LocalDisk struct {
	Dir     string
	BaseURL string
}

// NewLocalDisk creates a disk-backed [Uploader] rooted at dir.
func NewLocalDisk(dir, baseURL string) *LocalDisk {
	return &LocalDisk{
		Dir:     dir,
		BaseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (l *LocalDisk) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	if strings.Contains(objectName, "..") {
		return "", fmt.Errorf("invalid object name %q", objectName)
	}

	path := filepath.Join(l.Dir, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("upload copy: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("upload close: %w", err)
	}

	return l.BaseURL + "/" + objectName, nil
}

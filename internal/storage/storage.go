// Package storage puts uploaded files in object storage (GCS) or on local
// disk and hands back the public URL.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"kitchen-backend/internal/apperr"
)

type Uploader interface {
	// Upload stores r under key and returns its public URL.
	Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// ObjectKey builds "<folder>/<id>.<format>". The folder is cleaned and must
// stay relative.
func ObjectKey(folder, id, format string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperr.Validation("file identifier is required")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", apperr.Validation("file identifier must not contain path separators")
	}

	name := id
	if ext := strings.TrimLeft(strings.TrimSpace(format), "."); ext != "" {
		name = id + "." + ext
	}

	folder = strings.Trim(strings.ReplaceAll(strings.TrimSpace(folder), `\`, "/"), "/")
	if folder == "" {
		return name, nil
	}
	clean := path.Clean(folder)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", apperr.Validation("folder must not leave the storage root")
	}
	return clean + "/" + name, nil
}

// LocalUploader writes files under Dir and serves them from BaseURL (the
// server mounts Dir as static files).
type LocalUploader struct {
	Dir     string
	BaseURL string
}

func NewLocalUploader(dir, baseURL string) *LocalUploader {
	if baseURL == "" {
		baseURL = "/uploads"
	}
	return &LocalUploader{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (u *LocalUploader) Upload(_ context.Context, key, _ string, r io.Reader) (string, error) {
	filePath := filepath.Join(u.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return "", fmt.Errorf("creating upload folder: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return u.BaseURL + "/" + key, nil
}

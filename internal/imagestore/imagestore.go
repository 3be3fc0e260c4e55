// Package imagestore saves uploaded label images on local disk, one directory
// per user.
package imagestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes uploaded images under a base directory.
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Save writes the image for userID and returns the stored path. The filename
// is a fresh UUID with the original extension, so uploads never collide and
// the original name never reaches the filesystem.
func (s *Store) Save(userID, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}
	dir := filepath.Join(s.baseDir, sanitize(userID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create user image dir: %w", err)
	}
	path := filepath.Join(dir, uuid.New().String()+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}

// sanitize strips path separators so a hostile user ID cannot escape the base
// directory.
func sanitize(userID string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.', ':':
			return '_'
		}
		return r
	}, userID)
	if cleaned == "" {
		cleaned = "anonymous"
	}
	return cleaned
}

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MediaStore persists media files on disk under the configured media root.
// Paths are the canonical relative locations computed by pkg/paths; the
// store never derives names itself.
type MediaStore struct {
	root string
}

// NewMediaStore ensures the media root exists and returns a handle.
func NewMediaStore(root string) (*MediaStore, error) {
	if root == "" {
		root = "./media"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &MediaStore{root: root}, nil
}

// Save writes the given bytes at the relative media path.
func (s *MediaStore) Save(relPath string, data []byte) error {
	abs := s.resolve(relPath)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("prepare media directory: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("write media file: %w", err)
	}
	return nil
}

// SaveStream copies from reader into the target media path.
func (s *MediaStore) SaveStream(relPath string, r io.Reader) error {
	abs := s.resolve(relPath)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("prepare media directory: %w", err)
	}
	file, err := os.Create(abs)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("write media stream: %w", err)
	}
	return nil
}

// Read returns the full contents of a stored media file.
func (s *MediaStore) Read(relPath string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(relPath))
	if err != nil {
		return nil, fmt.Errorf("read media file: %w", err)
	}
	return data, nil
}

// Open returns a read-only handle for the stored file.
func (s *MediaStore) Open(relPath string) (*os.File, error) {
	file, err := os.Open(s.resolve(relPath))
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	return file, nil
}

// Exists reports whether a media file is present.
func (s *MediaStore) Exists(relPath string) bool {
	_, err := os.Stat(s.resolve(relPath))
	return err == nil
}

// Delete removes a stored file if present.
func (s *MediaStore) Delete(relPath string) error {
	if err := os.Remove(s.resolve(relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete media file: %w", err)
	}
	return nil
}

// Path exposes the underlying absolute path, handed to the external
// reconstruction engine which works directly on the filesystem.
func (s *MediaStore) Path(relPath string) string {
	return s.resolve(relPath)
}

func (s *MediaStore) resolve(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(s.root, relPath)
}

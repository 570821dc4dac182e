// internal/vault/store.go
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is the document store the materialization writer runs against.
// Paths are slash-separated and relative to the store root. The store has
// read-modify-write semantics with no transactions; callers are expected
// to serialize writes per path.
type Store interface {
	Exists(path string) bool
	Read(path string) (string, error)
	Create(path, content string) error
	Modify(path, content string) error
	CreateFolder(path string) error
}

// FileStore is a Store backed by a directory tree on the local filesystem.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the store's root directory.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(path, "/")))
}

func (s *FileStore) Exists(path string) bool {
	info, err := os.Stat(s.abs(path))
	return err == nil && !info.IsDir()
}

func (s *FileStore) Read(path string) (string, error) {
	data, err := os.ReadFile(s.abs(path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Create writes a new document. It fails if the document already exists;
// callers that want create-or-append semantics check Exists first.
func (s *FileStore) Create(path, content string) error {
	abs := s.abs(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create parent folder for %s: %w", path, err)
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Modify(path, content string) error {
	if err := os.WriteFile(s.abs(path), []byte(content), 0o644); err != nil {
		return fmt.Errorf("modify %s: %w", path, err)
	}
	return nil
}

// CreateFolder makes the folder and any missing parents. An existing
// folder is not an error.
func (s *FileStore) CreateFolder(path string) error {
	if err := os.MkdirAll(s.abs(path), 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", path, err)
	}
	return nil
}

// Package local implements a local filesystem content store for cached
// response bodies and their sidecar metadata records.
package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Config captures the parameters for the local filesystem content store.
type Config struct {
	// BaseDir is the root directory where blobs will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes response bodies and sidecar records to the local filesystem.
type Store struct {
	baseDir string
}

// New creates a new local filesystem-backed content store.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// Ref returns the reference (absolute path) a blob with the given name
// would be stored under. It does not check for existence.
func (s *Store) Ref(name string) string {
	return filepath.Join(s.baseDir, name)
}

// Put writes data to a file named name inside the store directory and
// returns its reference. Repeated puts under the same name overwrite.
func (s *Store) Put(name string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("blob name is required")
	}
	if filepath.Base(name) != name {
		return "", fmt.Errorf("blob name must not contain path separators")
	}

	ref := s.Ref(name)
	if err := os.WriteFile(ref, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return ref, nil
}

// Get reads the blob at ref. A missing blob yields ErrNotFound so callers
// can distinguish "no body expected" from "body expected but unreadable".
func (s *Store) Get(ref string) ([]byte, error) {
	cleanBase := filepath.Clean(s.baseDir)
	cleanRef := filepath.Clean(ref)
	if !strings.HasPrefix(cleanRef, cleanBase+string(filepath.Separator)) {
		return nil, fmt.Errorf("blob reference outside store directory")
	}

	data, err := os.ReadFile(cleanRef) // #nosec G304 -- ref verified to be inside baseDir above.
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

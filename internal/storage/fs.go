package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/agenda/internal/checksum"
)

// FS implements Provider on a local directory.
type FS struct {
	root string
}

// NewFS returns a provider for root, creating the directory when missing.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	if info, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute export directory.
func (f *FS) Root() string { return f.root }

// path maps an export name to its file. Only bare, visible .ics names are
// accepted, so nothing can land outside root.
func (f *FS) path(name string) (string, error) {
	switch {
	case name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`):
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	case !strings.EqualFold(filepath.Ext(name), ".ics"):
		return "", fmt.Errorf("%w: %q is not an .ics file", ErrInvalidName, name)
	}
	return filepath.Join(f.root, name), nil
}

// Read returns the stored bytes of name.
func (f *FS) Read(name string) ([]byte, error) {
	p, err := f.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// Write stages content in a hidden temp file, fsyncs it and renames it over
// name. Readers never observe a partial export.
func (f *FS) Write(name string, content []byte) (bool, error) {
	p, err := f.path(name)
	if err != nil {
		return false, err
	}
	switch old, err := os.ReadFile(p); {
	case err == nil && checksum.Sum(old) == checksum.Sum(content):
		return false, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("storage: read %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(f.root, ".export-*")
	if err != nil {
		return false, fmt.Errorf("storage: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return false, fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return false, fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return false, fmt.Errorf("storage: rename: %w", err)
	}
	return true, nil
}

// Package scratch hands out per-request temporary directories.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Area is a private temporary directory. Release removes it and everything
// inside; it is safe to call more than once.
type Area struct {
	dir  string
	once sync.Once
	err  error
}

// Acquire creates a fresh directory under parent (os.TempDir() when empty).
func Acquire(parent, prefix string) (*Area, error) {
	if prefix == "" {
		prefix = "loopstretch-"
	}
	dir, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Area{dir: dir}, nil
}

// Dir returns the directory path.
func (a *Area) Dir() string { return a.dir }

// Path returns the path of name inside the area.
func (a *Area) Path(name string) string {
	return filepath.Join(a.dir, filepath.Base(name))
}

// WriteFile stores data under name and returns the full path.
func (a *Area) WriteFile(name string, data []byte) (string, error) {
	p := a.Path(name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("write scratch file %s: %w", name, err)
	}
	return p, nil
}

// Release deletes the area.
func (a *Area) Release() error {
	a.once.Do(func() {
		a.err = os.RemoveAll(a.dir)
	})
	return a.err
}

package sync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Workspace gives access to files by workspace-relative, slash-separated path.
type Workspace struct {
	root string
	fsys fs.FS
}

func NewWorkspace(root string) *Workspace {
	return &Workspace{root: root, fsys: os.DirFS(root)}
}

func (w *Workspace) Root() string { return w.root }

// FS exposes the workspace as an fs.FS rooted at Root.
func (w *Workspace) FS() fs.FS { return w.fsys }

// Abs converts a workspace-relative path to an OS path.
func (w *Workspace) Abs(rel string) string {
	return filepath.Join(w.root, filepath.FromSlash(rel))
}

// Exists reports whether rel names an existing regular file.
func (w *Workspace) Exists(rel string) bool {
	info, err := os.Stat(w.Abs(rel))
	return err == nil && !info.IsDir()
}

func (w *Workspace) ReadFile(rel string) ([]byte, error) {
	return os.ReadFile(w.Abs(rel))
}

// HashFile returns the ContentHash of rel.
func (w *Workspace) HashFile(rel string) (string, error) {
	data, err := w.ReadFile(rel)
	if err != nil {
		return "", err
	}
	return ContentHash(data), nil
}

// WriteFile creates parent directories and atomically replaces rel.
func (w *Workspace) WriteFile(rel string, data []byte) error {
	abs := w.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	return writeFileAtomic(abs, data, 0o644)
}

// Remove deletes rel. A missing file is not an error.
func (w *Workspace) Remove(rel string) error {
	if err := os.Remove(w.Abs(rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PruneDirs removes dir and then its parents while they are empty and
// still inside limit. limit itself is removed when it ends up empty.
func (w *Workspace) PruneDirs(dir, limit string) {
	for dir == limit || strings.HasPrefix(dir, limit+"/") {
		if err := os.Remove(w.Abs(dir)); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

func writeFileAtomic(name string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, name)
}

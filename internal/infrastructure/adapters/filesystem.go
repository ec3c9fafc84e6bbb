package adapters

import (
	"os"
	"path/filepath"

	"netconfd/internal/domain/interfaces"

	"github.com/spf13/afero"
)

// AferoFileSystem is a FileSystem backed by an afero.Fs
type AferoFileSystem struct {
	fs afero.Fs
}

// NewFileSystem creates a FileSystem on top of fs
func NewFileSystem(fs afero.Fs) interfaces.FileSystem {
	return &AferoFileSystem{fs: fs}
}

// ReadFile reads a file
func (a *AferoFileSystem) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(a.fs, path)
}

// WriteFile writes data to a file, creating the directory if needed
func (a *AferoFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := a.fs.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return afero.WriteFile(a.fs, path, data, perm)
}

// Exists reports whether a file or directory exists
func (a *AferoFileSystem) Exists(path string) bool {
	ok, err := afero.Exists(a.fs, path)
	return err == nil && ok
}

// MkdirAll creates a directory tree
func (a *AferoFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return a.fs.MkdirAll(path, perm)
}

// Remove deletes a file or directory
func (a *AferoFileSystem) Remove(path string) error {
	return a.fs.Remove(path)
}

// ListFiles returns the regular files of a directory
func (a *AferoFileSystem) ListFiles(path string) ([]string, error) {
	return a.list(path, false)
}

// ListDirs returns the directories of a directory. Symlinks to directories
// count as directories, which is how device entries appear under sysfs.
func (a *AferoFileSystem) ListDirs(path string) ([]string, error) {
	return a.list(path, true)
}

func (a *AferoFileSystem) list(path string, dirs bool) ([]string, error) {
	entries, err := afero.ReadDir(a.fs, path)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		isDir := entry.IsDir()
		if entry.Mode()&os.ModeSymlink != 0 {
			if info, err := a.fs.Stat(filepath.Join(path, entry.Name())); err == nil {
				isDir = info.IsDir()
			}
		}
		if isDir == dirs {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}

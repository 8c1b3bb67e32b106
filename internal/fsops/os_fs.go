package fsops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// OSFileSystem implements FileSystem using real os package calls
type OSFileSystem struct{}

func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

func (OSFileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ReadDir keeps the order the directory stream returns; os.ReadDir would sort by name.
func (OSFileSystem) ReadDir(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

func (OSFileSystem) Stat(path string) (Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, err
	}
	mode := info.Mode()
	return Entry{
		Name:      info.Name(),
		IsDir:     mode.IsDir(),
		IsRegular: mode.IsRegular(),
		IsSymlink: mode&fs.ModeSymlink != 0,
		Size:      info.Size(),
	}, nil
}

func (OSFileSystem) Join(elem ...string) string {
	return filepath.Join(elem...)
}

func (OSFileSystem) Resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	joined := filepath.Join(base, p)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return joined
	}
	return abs
}

func (OSFileSystem) Rel(base, target string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	return filepath.Rel(absBase, target)
}

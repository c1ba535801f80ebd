package kv

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend stores each key as <dir>/<key>.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates dir (0700) if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("kv: file backend directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileBackend) Get(key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set replaces the snapshot for key atomically.
func (f *FileBackend) Set(key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	return WriteFileAtomic(f.path(key), value)
}

// WriteFileAtomic writes data to a temp file next to path, fsyncs it,
// chmods it 0600 and renames it over path. Readers see either the old
// or the new content.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".agenda-"+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (f *FileBackend) Close() error { return nil }

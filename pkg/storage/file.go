package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// File stores every key in one JSON document. Each call re-reads the
// document, so writes from another process are seen on the next access.
// Writes go to a temp file that is renamed over the original.
type File struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewFile returns a File backed by the OS filesystem.
func NewFile(path string) (*File, error) {
	return NewFileFs(afero.NewOsFs(), path)
}

// NewFileFs is NewFile over an arbitrary afero filesystem.
func NewFileFs(fs afero.Fs, path string) (*File, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &File{fs: fs, path: path}, nil
}

// Path is the document location
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	return f.SetMany(map[string]string{key: value})
}

func (f *File) SetMany(values map[string]string) error {
	if err := checkKeys(values); err != nil {
		return err
	}
	return f.update(func(doc map[string]string) {
		for k, v := range values {
			doc[k] = v
		}
	})
}

func (f *File) Delete(keys ...string) error {
	return f.update(func(doc map[string]string) {
		for _, k := range keys {
			delete(doc, k)
		}
	})
}

func (f *File) update(mutate func(map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	mutate(doc)
	return f.write(doc)
}

func (f *File) read() (map[string]string, error) {
	doc := make(map[string]string)

	data, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *File) write(doc map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(f.fs, filepath.Dir(f.path), "."+filepath.Base(f.path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		f.fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		f.fs.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		f.fs.Remove(tmpName)
		return err
	}
	if err := f.fs.Chmod(tmpName, 0o600); err != nil {
		f.fs.Remove(tmpName)
		return err
	}
	if err := f.fs.Rename(tmpName, f.path); err != nil {
		f.fs.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/asrcollect/internal/common"
)

const tempPrefix = ".upload-"

// LocalStore keeps payloads as files in a single directory. References are
// the file paths joined with the directory, as given to NewLocalStore.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Put writes into a temporary file in the same directory and renames it into
// place, so readers never observe a partial payload.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid object name %q: %w", name, common.ErrInvalidInput)
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	ref := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), ref); err != nil {
		return "", fmt.Errorf("rename into %s: %w", ref, err)
	}
	return ref, nil
}

// Open refuses references that do not point directly into the store directory.
func (s *LocalStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !s.owns(ref) {
		return nil, fmt.Errorf("open %s: %w", ref, common.ErrNotFound)
	}
	f, err := os.Open(ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", ref, common.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return f, nil
}

func (s *LocalStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", s.dir, err)
	}
	objects := make([]Object, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		objects = append(objects, Object{
			Ref:     filepath.Join(s.dir, e.Name()),
			ModTime: info.ModTime(),
		})
	}
	return objects, nil
}

func (s *LocalStore) Stat(ctx context.Context, ref string) (Object, error) {
	if !s.owns(ref) {
		return Object{}, fmt.Errorf("stat %s: %w", ref, common.ErrNotFound)
	}
	info, err := os.Stat(ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, fmt.Errorf("stat %s: %w", ref, common.ErrNotFound)
		}
		return Object{}, fmt.Errorf("stat %s: %w", ref, err)
	}
	return Object{Ref: ref, ModTime: info.ModTime()}, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	if !s.owns(ref) {
		return fmt.Errorf("delete %s: %w", ref, common.ErrNotFound)
	}
	if err := os.Remove(ref); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

func (s *LocalStore) owns(ref string) bool {
	return filepath.Dir(filepath.Clean(ref)) == filepath.Clean(s.dir)
}

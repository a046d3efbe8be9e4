package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNameTaken is returned when a file with the requested name already exists.
var ErrNameTaken = errors.New("file name already taken")

// UploadStore is the flat directory holding originals and processed images.
type UploadStore interface {
	// Create writes r to a new file called name and returns its path and size.
	Create(ctx context.Context, name string, r io.Reader) (string, int64, error)
	// Path returns where name lives on disk.
	Path(name string) string
	// Remove deletes a file previously created by the store.
	Remove(filePath string) error
	// PublicURL maps a file name to the URL it is served under.
	PublicURL(name string) string
	// Dir returns the upload directory.
	Dir() string
}

// LocalStore implements UploadStore on the local file system.
type LocalStore struct {
	dir          string
	publicPrefix string

	mkdirOnce sync.Once
	mkdirErr  error
}

// NewLocalStore creates a store rooted at dir. The directory is created on first write.
func NewLocalStore(dir, publicPrefix string) *LocalStore {
	return &LocalStore{
		dir:          filepath.Clean(dir),
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
	}
}

func (s *LocalStore) ensureDir() error {
	s.mkdirOnce.Do(func() {
		s.mkdirErr = os.MkdirAll(s.dir, 0o755)
	})
	return s.mkdirErr
}

// Create writes the file exclusively; an existing name yields ErrNameTaken.
func (s *LocalStore) Create(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", 0, fmt.Errorf("invalid file name %q", name)
	}
	if err := s.ensureDir(); err != nil {
		return "", 0, fmt.Errorf("create upload directory: %w", err)
	}

	filePath := s.Path(name)
	f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", 0, ErrNameTaken
		}
		return "", 0, fmt.Errorf("open %s: %w", name, err)
	}

	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(filePath)
		if copyErr != nil {
			return "", 0, fmt.Errorf("write %s: %w", name, copyErr)
		}
		return "", 0, fmt.Errorf("close %s: %w", name, closeErr)
	}
	return filePath, n, nil
}

func (s *LocalStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Remove refuses paths outside the upload directory. Missing files are not an error.
func (s *LocalStore) Remove(filePath string) error {
	clean := filepath.Clean(filePath)
	if filepath.Dir(clean) != s.dir {
		return fmt.Errorf("refusing to remove %s outside %s", filePath, s.dir)
	}
	if err := os.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) PublicURL(name string) string {
	return path.Join(s.publicPrefix, path.Base(name))
}

func (s *LocalStore) Dir() string {
	return s.dir
}

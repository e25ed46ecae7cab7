// Package blob stores attachment bytes on the local filesystem. Keys are
// issue-scoped relative paths with a uuid prefix so colliding filenames
// never overwrite each other.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

type LocalStore struct {
	root string
}

var _ ports.BlobStore = (*LocalStore)(nil)

func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("blob store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create blob root %q", root)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Put(ctx context.Context, issueID uint64, filename string, content io.Reader) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	base := sanitizeFilename(filename)
	key := filepath.ToSlash(filepath.Join(
		fmt.Sprintf("issue_%d", issueID),
		uuid.NewString()+"_"+base,
	))

	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errs.Wrap(err, "create issue blob directory")
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", errs.Wrap(err, "create blob file")
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		_ = os.Remove(dst)
		return "", errs.Wrap(err, "write blob file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", errs.Wrap(err, "close blob file")
	}

	return key, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ports.ErrBlobNotFound
		}
		return nil, errs.Wrap(err, "open blob file")
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(err, "remove blob file")
	}
	return nil
}

// resolve rejects keys that would escape the store root.
func (s *LocalStore) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimSpace(key)))
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, cleaned), nil
}

func sanitizeFilename(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
}

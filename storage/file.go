package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rohanthewiz/serr"
)

var validNamespace = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// File stores each namespace as <dir>/<namespace><ext>.
type File struct {
	dir string
	ext string
}

// NewFile creates dir if needed. ext is the file suffix, e.g. ".json".
func NewFile(dir, ext string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, serr.Wrap(err, "failed to create data directory")
	}
	return &File{dir: dir, ext: ext}, nil
}

func (f *File) path(namespace string) (string, error) {
	if !validNamespace.MatchString(namespace) {
		return "", serr.New("invalid namespace name: " + namespace)
	}
	return filepath.Join(f.dir, namespace+f.ext), nil
}

func (f *File) Load(ctx context.Context, namespace string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := f.path(namespace)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to read namespace file")
	}
	return data, nil
}

// Save replaces the namespace file atomically: readers see either the old
// or the new content, never a partial write.
func (f *File) Save(ctx context.Context, namespace string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(namespace)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+namespace+"-*.tmp")
	if err != nil {
		return serr.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return serr.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return serr.Wrap(err, "failed to sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return serr.Wrap(err, "failed to close temp file")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return serr.Wrap(err, "failed to set file mode")
	}
	if err := os.Rename(tmpName, p); err != nil {
		return serr.Wrap(err, "failed to replace namespace file")
	}
	return nil
}

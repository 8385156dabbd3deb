package remotefs

import (
	"context"
	"io"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// Local is a FileSystem over an afero filesystem.
type Local struct {
	fs afero.Fs
}

// NewLocal returns a Local writing to fs.
func NewLocal(fs afero.Fs) *Local {
	return &Local{fs: fs}
}

func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	return afero.Exists(l.fs, path)
}

func (l *Local) Delete(_ context.Context, path string, recursive bool) error {
	if recursive {
		return l.fs.RemoveAll(path)
	}
	return l.fs.Remove(path)
}

func (l *Local) Create(_ context.Context, path string) (io.WriteCloser, error) {
	dir := filepath.Dir(path)
	if err := l.fs.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating directory %q", dir)
	}
	return l.fs.Create(path)
}

func (l *Local) Close() error {
	return nil
}

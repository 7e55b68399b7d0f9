package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// StoredFile describes a file written by the Manager.
type StoredFile struct {
	Name string // unique name inside the directory
	Path string // dir joined with Name
	Size int64
}

// Manager writes uploads to per-purpose directories on local disk.
type Manager struct{}

func NewManager() *Manager { return &Manager{} }

// Store writes r into dir under original, or under the first free stem_N.ext
// when the name is taken. dir is created if absent. The file is created with
// O_EXCL, so two concurrent uploads of the same name never overwrite each
// other: the loser re-probes from the next suffix.
func (m *Manager) Store(ctx context.Context, r io.Reader, original, dir string) (StoredFile, error) {
	original = CleanName(original)
	if err := ValidateFilename(original); err != nil {
		return StoredFile{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("upload: create dir: %w", err)
	}

	from := 0
	for {
		if err := ctx.Err(); err != nil {
			return StoredFile{}, err
		}
		name, n, err := nextFree(original, dir, from)
		if err != nil {
			return StoredFile{}, err
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			from = n + 1
			continue
		}
		if err != nil {
			return StoredFile{}, fmt.Errorf("upload: create %s: %w", name, err)
		}
		size, err := writeAndClose(f, r)
		if err != nil {
			_ = os.Remove(path)
			return StoredFile{}, fmt.Errorf("upload: write %s: %w", name, err)
		}
		return StoredFile{Name: name, Path: path, Size: size}, nil
	}
}

// Remove deletes path. A file that is already gone is logged and ignored.
func (m *Manager) Remove(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("file", path).Msg("upload: file already missing on delete")
		return nil
	}
	return err
}

// RandomName is a UUID with the lower-cased extension of original.
func RandomName(original string) string {
	if ext := Extension(CleanName(original)); ext != "" {
		return uuid.NewString() + "." + ext
	}
	return uuid.NewString()
}

func writeAndClose(f *os.File, r io.Reader) (int64, error) {
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

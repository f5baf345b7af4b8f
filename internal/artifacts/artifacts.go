// Package artifacts manages enrollment photos stored under dataset/<id>/.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/visagium/internal/constants"
	"github.com/kozaktomas/visagium/internal/facematch"
)

// ErrInvalidID is returned for identity ids that cannot be used as a directory name.
var ErrInvalidID = errors.New("invalid identity id for dataset folder")

// Store writes and removes enrollment photos below a root directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Dir returns the folder holding the photos of one identity.
func (s *Store) Dir(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.root, id), nil
}

// Stage writes a capture of an identity as <dir>/<name-slug>_<n>.jpg and
// returns the written path. n is a 1-based hint; when that file already
// exists, from an earlier enrollment, the next free number is used so
// committed photos are never overwritten.
func (s *Store) Stage(id, name string, n int, data []byte) (string, error) {
	dir, err := s.Dir(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("could not create dataset folder: %w", err)
	}

	slug := facematch.Slug(name)
	for k := max(n, 1); k < max(n, 1)+constants.MaxStagedPhotos; k++ {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d%s", slug, k, constants.ArtifactExt))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("could not create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("could not write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("could not write %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free photo name left in %s", dir)
}

// Discard removes staged files and the identity folder when it ends up empty.
// Files that are already gone are ignored.
func (s *Store) Discard(id string, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	dir, err := s.Dir(id)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		errs = append(errs, err)
	case len(entries) == 0:
		if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveIdentity deletes the whole folder of an identity. A missing folder is not an error.
func (s *Store) RemoveIdentity(id string) error {
	dir, err := s.Dir(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("could not remove %s: %w", dir, err)
	}
	return nil
}

// List returns the photo paths stored for an identity.
func (s *Store) List(id string) ([]string, error) {
	dir, err := s.Dir(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), constants.ArtifactExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

package database

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/kozaktomas/visagium/internal/facematch"
)

type encodingFile struct {
	Version int
	Records []encodingRow
}

type encodingRow struct {
	ID       string
	Name     string
	Encoding []float32
}

// FileStore keeps the encoding store in one gob file that is rewritten
// whole on every mutation.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	records []facematch.Record
}

// OpenFileStore loads the store at path. A missing file is an empty store.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening encoding store: %w", err)
	}
	defer f.Close()

	var data encodingFile
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrStoreCorruption, path, err)
	}
	if data.Version != encodingFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrStoreCorruption, data.Version)
	}

	records := make([]facematch.Record, len(data.Records))
	for i, row := range data.Records {
		records[i] = facematch.Record{
			Identity: facematch.Identity{ID: row.ID, Name: row.Name},
			Encoding: row.Encoding,
		}
	}
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}
	s.records = records
	return s, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Records() []facematch.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CloneRecords(s.records)
}

func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *FileStore) Append(ctx context.Context, records []facematch.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]facematch.Record, 0, len(s.records)+len(records))
	next = append(next, s.records...)
	next = append(next, CloneRecords(records)...)
	if err := ValidateRecords(next); err != nil {
		return err
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

func (s *FileStore) RemoveIdentity(ctx context.Context, identityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(s.records), func(r facematch.Record) bool {
		return r.ID == identityID
	})
	removed := len(s.records) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := s.write(next); err != nil {
		return 0, err
	}
	s.records = next
	return removed, nil
}

// Replace swaps the whole store content, used by import --replace.
func (s *FileStore) Replace(ctx context.Context, records []facematch.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := CloneRecords(records)
	if err := ValidateRecords(next); err != nil {
		return err
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

// write persists records via a temp file and rename so a crash leaves
// either the old or the new file, never a partial one.
func (s *FileStore) write(records []facematch.Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	data := encodingFile{Version: encodingFileVersion, Records: make([]encodingRow, len(records))}
	for i, r := range records {
		data.Records[i] = encodingRow{ID: r.ID, Name: r.Name, Encoding: r.Encoding}
	}
	if err := gob.NewEncoder(tmp).Encode(&data); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}

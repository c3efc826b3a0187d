package txstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"
)

// Interface guard
var _ Store = (*FileStore)(nil)

// FileStore persists one JSON file per transaction under a directory. It is
// the durable backend for crash recovery: records are written with a
// rename so a crash mid-write never leaves a truncated record behind.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string, handler slog.Handler) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("txstore: directory path required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}

	logger := slog.Default().WithGroup("txstore.FileStore")
	if handler != nil {
		logger = slog.New(handler).WithGroup("txstore.FileStore")
	}

	return &FileStore{dir: dir, logger: logger}, nil
}

// Save writes or replaces the record for its transaction ID.
func (s *FileStore) Save(rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}

	path := s.path(rec.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize record %s: %w", rec.ID, err)
	}

	s.logger.Debug("Saved record", "id", rec.ID.String(), "phase", rec.Snapshot.Phase)
	return nil
}

// Load returns the record for the given ID, and whether it exists.
func (s *FileStore) Load(id uuid.UUID) (Record, bool, error) {
	raw, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read record %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return rec, true, nil
}

// LoadAll returns every stored record.
func (s *FileStore) LoadAll() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read record directory: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read record file %s: %w", entry.Name(), err)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record file %s: %w", entry.Name(), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Delete removes the record for the given ID.
func (s *FileStore) Delete(id uuid.UUID) error {
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

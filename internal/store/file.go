package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"StrategyVault/internal/vault"
)

// FileStore keeps every record in a single JSON file, rewritten on each Put.
// It suits small devnet deployments.
type FileStore struct {
	mu       sync.Mutex
	filePath string
	records  map[string]*vault.Record
}

// OpenFile loads the file at filePath. A missing file is an empty store.
func OpenFile(filePath string) (*FileStore, error) {
	s := &FileStore{filePath: filePath, records: make(map[string]*vault.Record)}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read vault file: %w", err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("parse vault file: %w", err)
	}
	return s, nil
}

func (s *FileStore) Get(id string) (*vault.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, notFound(id)
	}
	return copyRecord(rec)
}

func (s *FileStore) Put(rec *vault.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	stored, err := copyRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.records[rec.ID]
	s.records[rec.ID] = stored
	if err := s.save(); err != nil {
		if had {
			s.records[rec.ID] = prev
		} else {
			delete(s.records, rec.ID)
		}
		return err
	}
	return nil
}

func (s *FileStore) List() ([]*vault.Record, error) {
	return s.ListKind("")
}

// ListKind returns the records of kind, or all records when kind is empty.
func (s *FileStore) ListKind(kind vault.Kind) ([]*vault.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*vault.Record, 0, len(s.records))
	for _, rec := range s.records {
		if kind != "" && rec.Kind != kind {
			continue
		}
		cp, err := copyRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sortByID(out)
	return out, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}

// copyRecord deep-copies through JSON so callers never share state with the
// store.
func copyRecord(rec *vault.Record) (*vault.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode vault %s: %w", rec.ID, err)
	}
	out := &vault.Record{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode vault %s: %w", rec.ID, err)
	}
	return out, nil
}

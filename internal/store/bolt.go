package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"StrategyVault/internal/vault"
)

var bucketVaults = []byte("vaults")

// kindBucket indexes vault ids by family.
func kindBucket(k vault.Kind) []byte { return []byte("kind/" + string(k)) }

// BoltStore keeps one JSON-encoded record per vault in a bbolt database.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (and migrates) the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	buckets := [][]byte{bucketVaults, kindBucket(vault.KindFund), kindBucket(vault.KindDCA), kindBucket(vault.KindSwap)}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate bolt store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(id string) (*vault.Record, error) {
	var rec *vault.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketVaults).Get([]byte(id))
		if raw == nil {
			return notFound(id)
		}
		rec = &vault.Record{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BoltStore) Put(rec *vault.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode vault %s: %w", rec.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketVaults).Put([]byte(rec.ID), encoded); err != nil {
			return err
		}
		idx := tx.Bucket(kindBucket(rec.Kind))
		if idx == nil {
			return fmt.Errorf("unknown vault kind %q", rec.Kind)
		}
		return idx.Put([]byte(rec.ID), nil)
	})
}

func (s *BoltStore) List() ([]*vault.Record, error) {
	var out []*vault.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVaults).ForEach(func(_, raw []byte) error {
			rec := &vault.Record{}
			if err := json.Unmarshal(raw, rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// ListKind reads the kind index and resolves each id.
func (s *BoltStore) ListKind(kind vault.Kind) ([]*vault.Record, error) {
	var out []*vault.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(kindBucket(kind))
		if idx == nil {
			return nil
		}
		records := tx.Bucket(bucketVaults)
		return idx.ForEach(func(id, _ []byte) error {
			raw := records.Get(id)
			if raw == nil {
				return nil
			}
			rec := &vault.Record{}
			if err := json.Unmarshal(raw, rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// Close releases the underlying database handle.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

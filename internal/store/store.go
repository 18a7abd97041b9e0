// Package store persists vault records.
package store

import (
	"fmt"
	"sort"

	"StrategyVault/internal/model"
	"StrategyVault/internal/vault"
)

// Store persists vault records by id. Get returns an error wrapping
// model.ErrNotFound for unknown ids.
type Store interface {
	Get(id string) (*vault.Record, error)
	Put(rec *vault.Record) error
	List() ([]*vault.Record, error)
	ListKind(kind vault.Kind) ([]*vault.Record, error)
	Close() error
}

func notFound(id string) error {
	return fmt.Errorf("%w: vault %q", model.ErrNotFound, id)
}

func sortByID(recs []*vault.Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}

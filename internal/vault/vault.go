// Package vault implements the vault state machines: the fund vault, the
// recurring-purchase (DCA) vault and the per-user swap-initiator vault.
//
// Every operation takes the caller explicitly and is all-or-nothing: it
// validates, stages a candidate copy of the state, performs the host
// transfers through an asset.Gateway and only then commits the candidate.
// A failed operation leaves the vault untouched.
package vault

import (
	"fmt"
	"math/bits"
	"time"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/model"
	"StrategyVault/internal/role"
)

// Kind identifies a vault family.
type Kind string

const (
	KindFund Kind = "fund"
	KindDCA  Kind = "dca"
	KindSwap Kind = "swap"
)

// Call carries the per-operation context supplied by the surrounding framework.
type Call struct {
	Caller model.Address
	Now    time.Time
}

// Header holds the fields every vault family shares.
type Header struct {
	ID          string        `json:"id"`
	Address     model.Address `json:"address"`
	Roles       role.Registry `json:"roles"`
	Asset       asset.Ref     `json:"asset"`
	CreatedAt   time.Time     `json:"created_at"`
	LastUpdated time.Time     `json:"last_updated"`
	Deleted     bool          `json:"deleted"`
}

func newHeader(id string, addr model.Address, roles role.Registry, ref asset.Ref, now time.Time) (Header, error) {
	if id == "" {
		return Header{}, fmt.Errorf("%w: empty vault id", model.ErrInvalidParameter)
	}
	if addr.IsZero() {
		return Header{}, fmt.Errorf("%w: empty vault address", model.ErrInvalidParameter)
	}
	for r, a := range roles {
		if a.IsZero() {
			return Header{}, fmt.Errorf("%w: empty %s address", model.ErrInvalidParameter, r)
		}
	}
	return Header{
		ID:          id,
		Address:     addr,
		Roles:       roles,
		Asset:       ref,
		CreatedAt:   now,
		LastUpdated: now,
	}, nil
}

func (h Header) clone() Header {
	h.Roles = h.Roles.Clone()
	return h
}

func (h *Header) live() error {
	if h.Deleted {
		return fmt.Errorf("%w: vault %s is deleted", model.ErrInvalidState, h.ID)
	}
	return nil
}

func credit(balance, amount uint64) (uint64, error) {
	sum, carry := bits.Add64(balance, amount, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: credit of %d overflows balance %d", model.ErrInvalidParameter, amount, balance)
	}
	return sum, nil
}

func requirePositive(what string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: %s must be positive", model.ErrInvalidParameter, what)
	}
	return nil
}

// Record is the persisted envelope of one vault. Exactly one of the family
// pointers is set, matching Kind.
type Record struct {
	ID   string     `json:"id"`
	Kind Kind       `json:"kind"`
	Fund *FundVault `json:"fund,omitempty"`
	DCA  *DCAVault  `json:"dca,omitempty"`
	Swap *SwapVault `json:"swap,omitempty"`
}

// Header returns the shared header of the wrapped vault.
func (r *Record) Header() *Header {
	switch r.Kind {
	case KindFund:
		if r.Fund != nil {
			return &r.Fund.Header
		}
	case KindDCA:
		if r.DCA != nil {
			return &r.DCA.Header
		}
	case KindSwap:
		if r.Swap != nil {
			return &r.Swap.Header
		}
	}
	return nil
}

// Validate checks that the envelope is consistent.
func (r *Record) Validate() error {
	h := r.Header()
	if h == nil {
		return fmt.Errorf("vault record %q: no state for kind %q", r.ID, r.Kind)
	}
	if h.ID != r.ID {
		return fmt.Errorf("vault record %q: header id %q", r.ID, h.ID)
	}
	return nil
}

// Snapshot is the balance view of a vault used for events and metrics.
type Snapshot struct {
	Asset    asset.Ref
	Balance  uint64
	Reserve  uint64
	Pending  uint64 // bought or swapped asset awaiting claim or sweep
	InFlight bool
}

// Snapshot reads the balance view. Swap-initiator vaults report the vault
// account's observable balance, read through bal.
func (r *Record) Snapshot(bal asset.BalanceReader) Snapshot {
	switch {
	case r.Kind == KindFund && r.Fund != nil:
		return Snapshot{Asset: r.Fund.Asset, Balance: r.Fund.Balance, Reserve: r.Fund.Reserve}
	case r.Kind == KindDCA && r.DCA != nil:
		return Snapshot{
			Asset:    r.DCA.Asset,
			Balance:  r.DCA.Balance,
			Pending:  r.DCA.BuyAssetBalance,
			InFlight: r.DCA.InFlight,
		}
	case r.Kind == KindSwap && r.Swap != nil:
		s := Snapshot{
			Asset:    r.Swap.Asset,
			Reserve:  r.Swap.Reserve,
			Pending:  r.Swap.SwappedBalance,
			InFlight: r.Swap.InFlight,
		}
		if bal != nil {
			s.Balance = bal.BalanceOf(r.Swap.Address, r.Swap.Asset)
		}
		return s
	}
	return Snapshot{}
}

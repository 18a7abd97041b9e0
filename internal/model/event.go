package model

import "time"

// Event records one vault operation, accepted or rejected.
type Event struct {
	ID            string    `json:"id"`
	VaultID       string    `json:"vault_id"`
	VaultKind     string    `json:"vault_kind"`
	Op            string    `json:"op"`
	Caller        Address   `json:"caller"`
	Asset         string    `json:"asset"`
	Amount        uint64    `json:"amount"`
	BalanceBefore uint64    `json:"balance_before"`
	BalanceAfter  uint64    `json:"balance_after"`
	ReserveBefore uint64    `json:"reserve_before"`
	ReserveAfter  uint64    `json:"reserve_after"`
	InFlight      bool      `json:"in_flight"`
	ErrKind       ErrorKind `json:"err_kind,omitempty"` // empty when the operation succeeded
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

// Rejected reports whether the operation failed.
func (e *Event) Rejected() bool { return e.ErrKind != KindNone }

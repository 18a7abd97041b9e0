package recorder

import (
	"time"

	"StrategyVault/internal/model"
)

// SwapEvent records one leg of a swap handled by the keeper.
type SwapEvent struct {
	VaultID       string
	VaultKind     string
	Leg           string // "INITIATE" or "SETTLE"
	Counterparty  model.Address
	PaidAsset     string
	PaidAmount    uint64
	ReceivedAsset string
	ReceivedAmt   uint64
	Note          string
	At            time.Time
}

// Recorder persists vault history for analysis.
type Recorder interface {
	RecordEvent(evt *model.Event) error
	RecordSwap(evt *SwapEvent) error
	// RecentEvents returns up to limit events of vaultID, newest first.
	RecentEvents(vaultID string, limit int) ([]model.Event, error)
	Close() error
}

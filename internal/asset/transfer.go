package asset

import "StrategyVault/internal/model"

// Transfer is a movement of value on the host ledger. Inbound transfers
// claimed by a caller act as the proof for a credit.
type Transfer struct {
	ID       string        `json:"id"`
	Asset    Ref           `json:"asset"`
	Sender   model.Address `json:"sender"`
	Receiver model.Address `json:"receiver"`
	Amount   uint64        `json:"amount"`
	Fee      uint64        `json:"fee,omitempty"`
	Note     []byte        `json:"note,omitempty"`
}

// PaymentBackend moves native currency.
type PaymentBackend interface {
	SendPayment(t Transfer) (Transfer, error)
}

// TokenBackend moves fungible tokens.
type TokenBackend interface {
	SendAssetTransfer(t Transfer) (Transfer, error)
}

// Verifier confirms that a claimed transfer was executed exactly as claimed.
// A transfer can be claimed once; later claims of the same id fail.
type Verifier interface {
	ClaimInbound(claimed Transfer) bool
}

// BalanceReader exposes the observable balance of a host account.
type BalanceReader interface {
	BalanceOf(addr model.Address, ref Ref) uint64
}

// OptInBackend prepares an account to receive a token.
type OptInBackend interface {
	OptIn(addr model.Address, tokenID uint64) error
}

// Host bundles every primitive the vault engine consumes from the ledger.
type Host interface {
	PaymentBackend
	TokenBackend
	Verifier
	BalanceReader
	OptInBackend
}

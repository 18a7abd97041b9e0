package vault

import (
	"fmt"
	"time"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/model"
	"StrategyVault/internal/role"
)

// DCAVault spends its balance in slices through a swap counterparty and
// accumulates the bought asset for the admin to claim.
//
// Swap handshake: InitiateTransferForSwap moves one slice to the counterparty
// and marks the vault in flight; ReceivePurchasedAsset credits the result and
// clears the flag. Only one swap may be in flight.
type DCAVault struct {
	Header
	BuyAsset         asset.Ref     `json:"buy_asset"`
	BuyTokenReceiver model.Address `json:"buy_token_receiver"`
	Balance          uint64        `json:"balance"`
	BuyAssetBalance  uint64        `json:"buy_asset_balance"`
	IntervalSeconds  uint64        `json:"interval_seconds"`
	TargetSpend      uint64        `json:"target_spend"`
	TargetBuy        uint64        `json:"target_buy,omitempty"`
	EndTime          time.Time     `json:"end_time,omitempty"`
	IntervalAmount   uint64        `json:"interval_amount"`
	InFlight         bool          `json:"in_flight"`
	PendingSwap      uint64        `json:"pending_swap"`
	LastSwapAt       time.Time     `json:"last_swap_at,omitempty"`
	SwapCount        uint64        `json:"swap_count"`
	TotalSpent       uint64        `json:"total_spent"`
	TotalBought      uint64        `json:"total_bought"`
}

// DCAParams are the creation-time parameters of a DCA vault. Admin defaults to
// the creating caller.
type DCAParams struct {
	ID               string
	Address          model.Address
	Admin            model.Address
	Orchestrator     model.Address
	Counterparty     model.Address
	BuyTokenReceiver model.Address
	Asset            asset.Ref
	BuyAsset         asset.Ref
	IntervalSeconds  uint64
	TargetSpend      uint64
}

// Schedule holds the parameters UpdateParams may overwrite.
type Schedule struct {
	IntervalSeconds uint64
	TargetSpend     uint64
	TargetBuy       uint64
	EndTime         time.Time
}

// NewDCA creates a DCA vault.
func NewDCA(c Call, p DCAParams) (*DCAVault, error) {
	if p.Admin.IsZero() {
		p.Admin = c.Caller
	}
	if p.BuyTokenReceiver.IsZero() {
		p.BuyTokenReceiver = p.Admin
	}
	if p.Admin.IsZero() || p.Orchestrator.IsZero() || p.Counterparty.IsZero() {
		return nil, fmt.Errorf("%w: admin, orchestrator and counterparty are required", model.ErrInvalidParameter)
	}
	if p.Asset == p.BuyAsset {
		return nil, fmt.Errorf("%w: balance and buy asset are both %s", model.ErrInvalidParameter, p.Asset)
	}
	if err := requirePositive("interval seconds", p.IntervalSeconds); err != nil {
		return nil, err
	}
	h, err := newHeader(p.ID, p.Address, role.Registry{
		role.Admin:        p.Admin,
		role.Orchestrator: p.Orchestrator,
		role.Counterparty: p.Counterparty,
	}, p.Asset, c.Now)
	if err != nil {
		return nil, err
	}
	return &DCAVault{
		Header:           h,
		BuyAsset:         p.BuyAsset,
		BuyTokenReceiver: p.BuyTokenReceiver,
		IntervalSeconds:  p.IntervalSeconds,
		TargetSpend:      p.TargetSpend,
	}, nil
}

func (v *DCAVault) clone() DCAVault {
	next := *v
	next.Header = v.Header.clone()
	return next
}

// intervalAmount never divides by zero: without a target spend there is no
// slice to buy.
func intervalAmount(balance, targetSpend uint64) uint64 {
	if targetSpend == 0 {
		return 0
	}
	return balance / targetSpend
}

// UpdateParams overwrites the schedule. IntervalAmount keeps its value until
// the next Fund or RemoveFunds.
func (v *DCAVault) UpdateParams(c Call, s Schedule) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Admin); err != nil {
		return err
	}
	if err := requirePositive("interval seconds", s.IntervalSeconds); err != nil {
		return err
	}
	v.IntervalSeconds = s.IntervalSeconds
	v.TargetSpend = s.TargetSpend
	v.TargetBuy = s.TargetBuy
	v.EndTime = s.EndTime
	v.LastUpdated = c.Now
	return nil
}

// Fund credits amount from the admin and recomputes the interval amount.
func (v *DCAVault) Fund(c Call, gw *asset.Gateway, amount uint64, proof asset.Transfer) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Admin); err != nil {
		return err
	}
	if err := requirePositive("fund amount", amount); err != nil {
		return err
	}
	if !v.EndTime.IsZero() && c.Now.After(v.EndTime) {
		return fmt.Errorf("%w: schedule ended at %s", model.ErrInvalidState, v.EndTime.Format(time.RFC3339))
	}

	next := v.clone()
	var err error
	if next.Balance, err = credit(next.Balance, amount); err != nil {
		return err
	}
	next.IntervalAmount = intervalAmount(next.Balance, next.TargetSpend)
	if err := gw.VerifyInbound(proof, v.Roles.Get(role.Admin), amount, v.Asset); err != nil {
		return err
	}
	next.LastUpdated = c.Now
	*v = next
	return nil
}

// RemoveFunds returns quantity to the admin, or the whole balance when
// quantity is zero.
func (v *DCAVault) RemoveFunds(c Call, gw *asset.Gateway, quantity uint64) (uint64, error) {
	if err := v.live(); err != nil {
		return 0, err
	}
	if err := v.Roles.Require(c.Caller, role.Admin); err != nil {
		return 0, err
	}
	if quantity == 0 {
		quantity = v.Balance
	}
	if quantity > v.Balance {
		return 0, fmt.Errorf("%w: requested %d, balance %d", model.ErrInsufficientBalance, quantity, v.Balance)
	}

	next := v.clone()
	next.Balance -= quantity
	next.IntervalAmount = intervalAmount(next.Balance, next.TargetSpend)
	if _, err := gw.Send(v.Asset, quantity, v.Roles.Get(role.Admin), nil); err != nil {
		return 0, err
	}
	next.LastUpdated = c.Now
	*v = next
	return quantity, nil
}

// ClaimBuyTokens sends the whole bought balance to the buy token receiver. It
// is a no-op when nothing has been bought.
func (v *DCAVault) ClaimBuyTokens(c Call, gw *asset.Gateway) (uint64, error) {
	if err := v.live(); err != nil {
		return 0, err
	}
	if err := v.Roles.Require(c.Caller, role.Admin); err != nil {
		return 0, err
	}
	if v.BuyAssetBalance == 0 {
		return 0, nil
	}

	next := v.clone()
	claimed := next.BuyAssetBalance
	next.BuyAssetBalance = 0
	if _, err := gw.Send(v.BuyAsset, claimed, v.BuyTokenReceiver, nil); err != nil {
		return 0, err
	}
	next.LastUpdated = c.Now
	*v = next
	return claimed, nil
}

// InitiateTransferForSwap sends one interval's worth of the balance to the
// counterparty and debits it. When the interval amount has decayed to zero
// the remaining balance goes out as a final slice.
func (v *DCAVault) InitiateTransferForSwap(c Call, gw *asset.Gateway, ref asset.Ref) (uint64, error) {
	if err := v.live(); err != nil {
		return 0, err
	}
	if err := v.Roles.Require(c.Caller, role.Counterparty); err != nil {
		return 0, err
	}
	if v.InFlight {
		return 0, fmt.Errorf("%w: swap of %d already in flight", model.ErrInvalidState, v.PendingSwap)
	}
	if ref != v.Asset {
		return 0, fmt.Errorf("%w: asset %s, vault holds %s", model.ErrInvalidParameter, ref, v.Asset)
	}
	if v.Balance == 0 {
		return 0, fmt.Errorf("%w: no balance to swap", model.ErrInvalidState)
	}
	if v.TargetSpend == 0 {
		return 0, fmt.Errorf("%w: target spend is zero", model.ErrInvalidParameter)
	}

	quantity := v.IntervalAmount
	if quantity == 0 || quantity > v.Balance {
		quantity = v.Balance
	}

	next := v.clone()
	next.Balance -= quantity
	next.IntervalAmount = intervalAmount(next.Balance, next.TargetSpend)
	next.InFlight = true
	next.PendingSwap = quantity
	next.LastSwapAt = c.Now
	next.SwapCount++
	next.TotalSpent += quantity
	if _, err := gw.Send(v.Asset, quantity, v.Roles.Get(role.Counterparty), nil); err != nil {
		return 0, err
	}
	next.LastUpdated = c.Now
	*v = next
	return quantity, nil
}

// ReceivePurchasedAsset credits the bought asset delivered by the
// counterparty and closes the in-flight swap.
func (v *DCAVault) ReceivePurchasedAsset(c Call, gw *asset.Gateway, proof asset.Transfer, quantity uint64) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Counterparty); err != nil {
		return err
	}
	if !v.InFlight {
		return fmt.Errorf("%w: no swap in flight", model.ErrInvalidState)
	}
	if err := requirePositive("purchased quantity", quantity); err != nil {
		return err
	}

	next := v.clone()
	var err error
	if next.BuyAssetBalance, err = credit(next.BuyAssetBalance, quantity); err != nil {
		return err
	}
	next.TotalBought += quantity
	next.InFlight = false
	next.PendingSwap = 0
	if err := gw.VerifyInbound(proof, v.Roles.Get(role.Counterparty), quantity, v.BuyAsset); err != nil {
		return err
	}
	next.LastUpdated = c.Now
	*v = next
	return nil
}

// RotateCounterparty replaces the swap wallet. It is refused while a swap is
// in flight, since the result must come back from the wallet that was paid.
func (v *DCAVault) RotateCounterparty(c Call, next model.Address) error {
	if err := v.live(); err != nil {
		return err
	}
	if v.InFlight {
		return fmt.Errorf("%w: swap in flight", model.ErrInvalidState)
	}
	roles := v.Roles.Clone()
	if err := roles.RotateCounterparty(c.Caller, next); err != nil {
		return err
	}
	v.Roles = roles
	v.LastUpdated = c.Now
	return nil
}

// Delete drains the balance and the bought balance back to the admin and
// retires the vault.
func (v *DCAVault) Delete(c Call, gw *asset.Gateway) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Admin); err != nil {
		return err
	}
	admin := v.Roles.Get(role.Admin)

	next := v.clone()
	if _, err := gw.Send(v.Asset, next.Balance, admin, nil); err != nil {
		return err
	}
	if _, err := gw.Send(v.BuyAsset, next.BuyAssetBalance, admin, nil); err != nil {
		return err
	}
	next.Balance = 0
	next.BuyAssetBalance = 0
	next.IntervalAmount = 0
	next.Deleted = true
	next.LastUpdated = c.Now
	*v = next
	return nil
}

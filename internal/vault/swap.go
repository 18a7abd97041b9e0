package vault

import (
	"fmt"
	"slices"
	"time"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/model"
	"StrategyVault/internal/role"
)

// SwapVault is a per-user vault that asks a swap manager to exchange native
// currency for a token and holds the proceeds until the orchestrator sweeps
// them. Its raw balance is the vault account's observable host balance; only
// the reserve and the swapped proceeds are tracked here.
type SwapVault struct {
	Header
	OptedIn        []uint64  `json:"opted_in,omitempty"`
	Reserve        uint64    `json:"reserve"`
	SwapAmount     uint64    `json:"swap_amount"`
	SwapToAsset    asset.Ref `json:"swap_to_asset"`
	SwappedBalance uint64    `json:"swapped_balance"`
	InFlight       bool      `json:"in_flight"`
	PendingSwap    uint64    `json:"pending_swap"`
	LastSwapAt     time.Time `json:"last_swap_at,omitempty"`
}

// SwapParams are the creation-time parameters of a swap-initiator vault. The
// owner is the creating caller.
type SwapParams struct {
	ID           string
	Address      model.Address
	Orchestrator model.Address
	Counterparty model.Address
}

// NewSwap creates a swap-initiator vault owned by c.Caller. It is funded in
// native currency.
func NewSwap(c Call, p SwapParams) (*SwapVault, error) {
	if c.Caller.IsZero() || p.Orchestrator.IsZero() || p.Counterparty.IsZero() {
		return nil, fmt.Errorf("%w: owner, orchestrator and counterparty are required", model.ErrInvalidParameter)
	}
	h, err := newHeader(p.ID, p.Address, role.Registry{
		role.Owner:        c.Caller,
		role.Orchestrator: p.Orchestrator,
		role.Counterparty: p.Counterparty,
	}, asset.Native, c.Now)
	if err != nil {
		return nil, err
	}
	return &SwapVault{Header: h}, nil
}

func (v *SwapVault) clone() SwapVault {
	next := *v
	next.Header = v.Header.clone()
	next.OptedIn = slices.Clone(v.OptedIn)
	return next
}

// HasOptedIn reports whether the vault can receive ref.
func (v *SwapVault) HasOptedIn(ref asset.Ref) bool {
	return ref.IsNative() || slices.Contains(v.OptedIn, ref.TokenID())
}

// OptInToAsset prepares the vault account to receive ref. Repeating it is a
// no-op.
func (v *SwapVault) OptInToAsset(c Call, gw *asset.Gateway, ref asset.Ref) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Owner); err != nil {
		return err
	}
	if ref.IsNative() {
		return fmt.Errorf("%w: native currency needs no opt-in", model.ErrInvalidParameter)
	}
	if v.HasOptedIn(ref) {
		return nil
	}

	next := v.clone()
	next.OptedIn = append(next.OptedIn, ref.TokenID())
	if err := gw.OptIn(ref); err != nil {
		return err
	}
	next.LastUpdated = c.Now
	*v = next
	return nil
}

// AddReserve credits the reserve from an owner payment.
func (v *SwapVault) AddReserve(c Call, gw *asset.Gateway, amount uint64, proof asset.Transfer) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Owner); err != nil {
		return err
	}
	if err := requirePositive("reserve amount", amount); err != nil {
		return err
	}

	next := v.clone()
	var err error
	if next.Reserve, err = credit(next.Reserve, amount); err != nil {
		return err
	}
	if err := gw.VerifyInbound(proof, v.Roles.Get(role.Owner), amount, asset.Native); err != nil {
		return err
	}
	next.LastUpdated = c.Now
	*v = next
	return nil
}

// SetSwapParams sets the pending swap request. The target token must already
// be opted in, and the request cannot change while a swap is in flight.
func (v *SwapVault) SetSwapParams(c Call, amount uint64, to asset.Ref) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Owner); err != nil {
		return err
	}
	if v.InFlight {
		return fmt.Errorf("%w: swap in flight", model.ErrInvalidState)
	}
	if !to.IsNative() && !v.HasOptedIn(to) {
		return fmt.Errorf("%w: vault has not opted in to %s", model.ErrInvalidState, to)
	}
	v.SwapAmount = amount
	v.SwapToAsset = to
	v.LastUpdated = c.Now
	return nil
}

// RotateCounterparty replaces the swap manager.
func (v *SwapVault) RotateCounterparty(c Call, next model.Address) error {
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

// InitiateSwap pays SwapAmount to the counterparty with a note describing the
// requested asset and amount. The counterparty is trusted to honour the note.
func (v *SwapVault) InitiateSwap(c Call, gw *asset.Gateway) (SwapRequest, error) {
	if err := v.live(); err != nil {
		return SwapRequest{}, err
	}
	if err := v.Roles.Require(c.Caller, role.Owner); err != nil {
		return SwapRequest{}, err
	}
	if v.InFlight {
		return SwapRequest{}, fmt.Errorf("%w: swap of %d already in flight", model.ErrInvalidState, v.PendingSwap)
	}
	observable := gw.Balance(asset.Native)
	switch {
	case observable == 0:
		return SwapRequest{}, fmt.Errorf("%w: vault account is empty", model.ErrInvalidState)
	case v.SwapAmount == 0 || v.SwapToAsset.IsNative():
		return SwapRequest{}, fmt.Errorf("%w: swap parameters not set", model.ErrInvalidState)
	case v.Reserve == 0:
		return SwapRequest{}, fmt.Errorf("%w: no reserve", model.ErrInvalidState)
	case observable < v.Reserve || observable-v.Reserve < v.SwapAmount:
		return SwapRequest{}, fmt.Errorf("%w: swap %d needs %d above reserve %d, have %d",
			model.ErrInsufficientBalance, v.SwapAmount, v.SwapAmount, v.Reserve, observable)
	}

	req := SwapRequest{Vault: v.ID, ToAsset: v.SwapToAsset, Amount: v.SwapAmount}
	next := v.clone()
	next.InFlight = true
	next.PendingSwap = v.SwapAmount
	next.LastSwapAt = c.Now
	if _, err := gw.Send(asset.Native, v.SwapAmount, v.Roles.Get(role.Counterparty), req.Encode()); err != nil {
		return SwapRequest{}, err
	}
	next.LastUpdated = c.Now
	*v = next
	return req, nil
}

// ReceiveSwapResult credits the token delivered by the counterparty.
func (v *SwapVault) ReceiveSwapResult(c Call, gw *asset.Gateway, proof asset.Transfer, quantity uint64) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Counterparty); err != nil {
		return err
	}
	if !v.InFlight {
		return fmt.Errorf("%w: no swap in flight", model.ErrInvalidState)
	}
	if err := requirePositive("swap result quantity", quantity); err != nil {
		return err
	}

	next := v.clone()
	var err error
	if next.SwappedBalance, err = credit(next.SwappedBalance, quantity); err != nil {
		return err
	}
	next.InFlight = false
	next.PendingSwap = 0
	if err := gw.VerifyInbound(proof, v.Roles.Get(role.Counterparty), quantity, v.SwapToAsset); err != nil {
		return err
	}
	next.LastUpdated = c.Now
	*v = next
	return nil
}

// SweepSwappedAsset sends the swapped proceeds to destination. Only the
// orchestrator may sweep; the owner cannot redirect purchased proceeds.
func (v *SwapVault) SweepSwappedAsset(c Call, gw *asset.Gateway, destination model.Address) (uint64, error) {
	if err := v.live(); err != nil {
		return 0, err
	}
	if err := v.Roles.Require(c.Caller, role.Orchestrator); err != nil {
		return 0, err
	}
	if destination.IsZero() {
		return 0, fmt.Errorf("%w: empty sweep destination", model.ErrInvalidParameter)
	}
	if v.SwappedBalance == 0 {
		return 0, fmt.Errorf("%w: nothing swapped", model.ErrInsufficientBalance)
	}
	if v.Reserve == 0 {
		return 0, fmt.Errorf("%w: no reserve", model.ErrInvalidState)
	}

	next := v.clone()
	swept := next.SwappedBalance
	next.SwappedBalance = 0
	if _, err := gw.Send(v.SwapToAsset, swept, destination, nil); err != nil {
		return 0, err
	}
	next.LastUpdated = c.Now
	*v = next
	return swept, nil
}

// Delete retires the vault. It refuses while swapped proceeds or a swap in
// flight remain. Native currency left on the vault account is not returned.
func (v *SwapVault) Delete(c Call) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Owner); err != nil {
		return err
	}
	if v.InFlight || v.SwappedBalance > 0 {
		return fmt.Errorf("%w: vault still holds %d swapped, in flight %v",
			model.ErrInvalidState, v.SwappedBalance, v.InFlight)
	}
	v.Deleted = true
	v.LastUpdated = c.Now
	return nil
}

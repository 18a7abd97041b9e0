package asset

import (
	"bytes"
	"fmt"

	"StrategyVault/internal/model"
)

// Gateway is the single dispatch point between a vault and the host ledger.
// It is bound to the vault's own account.
type Gateway struct {
	host    Host
	self    model.Address
	feeHint uint64
}

// NewGateway binds host to the vault account self.
func NewGateway(host Host, self model.Address, feeHint uint64) *Gateway {
	return &Gateway{host: host, self: self, feeHint: feeHint}
}

// Self returns the vault account address.
func (g *Gateway) Self() model.Address { return g.self }

// VerifyInbound checks that claimed moved exactly amount of ref from sender to
// the vault, then asks the host to confirm and consume it.
func (g *Gateway) VerifyInbound(claimed Transfer, sender model.Address, amount uint64, ref Ref) error {
	switch {
	case claimed.Sender != sender:
		return fmt.Errorf("%w: sender %s, expected %s", model.ErrInvalidProof, claimed.Sender, sender)
	case claimed.Receiver != g.self:
		return fmt.Errorf("%w: receiver %s, expected %s", model.ErrInvalidProof, claimed.Receiver, g.self)
	case claimed.Amount != amount:
		return fmt.Errorf("%w: amount %d, expected %d", model.ErrInvalidProof, claimed.Amount, amount)
	case claimed.Asset != ref:
		return fmt.Errorf("%w: asset %s, expected %s", model.ErrInvalidProof, claimed.Asset, ref)
	}
	if !g.host.ClaimInbound(claimed) {
		return fmt.Errorf("%w: transfer %q not confirmed by host", model.ErrInvalidProof, claimed.ID)
	}
	return nil
}

// Send moves amount of ref from the vault to receiver. Native refs go to the
// payment backend, tokens to the token backend; the two never mix. A zero
// amount is not sent.
func (g *Gateway) Send(ref Ref, amount uint64, receiver model.Address, note []byte) (Transfer, error) {
	if amount == 0 {
		return Transfer{}, nil
	}
	if receiver.IsZero() {
		return Transfer{}, fmt.Errorf("%w: empty receiver", model.ErrInvalidParameter)
	}
	out := Transfer{
		Asset:    ref,
		Sender:   g.self,
		Receiver: receiver,
		Amount:   amount,
		Fee:      g.feeHint,
		Note:     bytes.Clone(note),
	}
	var (
		sent Transfer
		err  error
	)
	if ref.IsNative() {
		sent, err = g.host.SendPayment(out)
	} else {
		sent, err = g.host.SendAssetTransfer(out)
	}
	if err != nil {
		return Transfer{}, fmt.Errorf("%w: send %d %s to %s: %v", model.ErrTransfer, amount, ref, receiver, err)
	}
	return sent, nil
}

// Balance returns the vault account's observable balance of ref.
func (g *Gateway) Balance(ref Ref) uint64 {
	return g.host.BalanceOf(g.self, ref)
}

// OptIn acknowledges a token on the vault account.
func (g *Gateway) OptIn(ref Ref) error {
	if ref.IsNative() {
		return fmt.Errorf("%w: native currency needs no opt-in", model.ErrInvalidParameter)
	}
	if err := g.host.OptIn(g.self, ref.TokenID()); err != nil {
		return fmt.Errorf("%w: opt in to %s: %v", model.ErrTransfer, ref, err)
	}
	return nil
}

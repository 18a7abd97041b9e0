package vault_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/hostledger"
	"StrategyVault/internal/model"
	"StrategyVault/internal/vault"
)

const (
	owner        model.Address = "owner"
	orchestrator model.Address = "orchestrator"
	swapper      model.Address = "swapper"
	mallory      model.Address = "mallory"
	vaultAddr    model.Address = "vault-account"
	feeHint      uint64        = 1000
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	ledger *hostledger.Ledger
	gw     *asset.Gateway
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	l := hostledger.New()
	return &harness{t: t, ledger: l, gw: asset.NewGateway(l, vaultAddr, feeHint), now: epoch}
}

func (h *harness) call(caller model.Address) vault.Call {
	h.now = h.now.Add(time.Minute)
	return vault.Call{Caller: caller, Now: h.now}
}

// pay mints amount to from and transfers it to to, returning the proof.
func (h *harness) pay(from, to model.Address, ref asset.Ref, amount uint64) asset.Transfer {
	h.t.Helper()
	require.NoError(h.t, h.ledger.Mint(from, ref, amount))
	if !ref.IsNative() {
		require.NoError(h.t, h.ledger.OptIn(to, ref.TokenID()))
	}
	tr, err := h.ledger.Transfer(from, to, ref, amount, nil)
	require.NoError(h.t, err)
	return tr
}

func (h *harness) balance(addr model.Address, ref asset.Ref) uint64 {
	return h.ledger.BalanceOf(addr, ref)
}

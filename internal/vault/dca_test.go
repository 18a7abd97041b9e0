package vault_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/model"
	"StrategyVault/internal/role"
	"StrategyVault/internal/vault"
)

const (
	admin    model.Address = "admin"
	receiver model.Address = "receiver"
)

var buyToken = asset.Token(10458941)

func newDCA(t *testing.T, h *harness, targetSpend uint64) *vault.DCAVault {
	t.Helper()
	v, err := vault.NewDCA(h.call(admin), vault.DCAParams{
		ID:               "dca-1",
		Address:          vaultAddr,
		Orchestrator:     orchestrator,
		Counterparty:     swapper,
		BuyTokenReceiver: receiver,
		Asset:            asset.Native,
		BuyAsset:         buyToken,
		IntervalSeconds:  60,
		TargetSpend:      targetSpend,
	})
	require.NoError(t, err)
	return v
}

func fund(t *testing.T, h *harness, v *vault.DCAVault, amount uint64) {
	t.Helper()
	require.NoError(t, v.Fund(h.call(admin), h.gw, amount, h.pay(admin, vaultAddr, v.Asset, amount)))
}

func TestNewDCA(t *testing.T) {
	h := newHarness(t)
	v := newDCA(t, h, 1000)
	assert.Equal(t, admin, v.Roles.Get(role.Admin))
	assert.False(t, v.InFlight)
	assert.Zero(t, v.IntervalAmount)

	_, err := vault.NewDCA(h.call(admin), vault.DCAParams{
		ID: "x", Address: vaultAddr, Orchestrator: orchestrator, Counterparty: swapper,
		Asset: buyToken, BuyAsset: buyToken, IntervalSeconds: 60,
	})
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	_, err = vault.NewDCA(h.call(admin), vault.DCAParams{
		ID: "x", Address: vaultAddr, Orchestrator: orchestrator, Counterparty: swapper,
		BuyAsset: buyToken,
	})
	assert.ErrorIs(t, err, model.ErrInvalidParameter, "zero interval")

	defaulted, err := vault.NewDCA(h.call(admin), vault.DCAParams{
		ID: "y", Address: vaultAddr, Orchestrator: orchestrator, Counterparty: swapper,
		BuyAsset: buyToken, IntervalSeconds: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, admin, defaulted.Roles.Get(role.Admin))
	assert.Equal(t, admin, defaulted.BuyTokenReceiver)
}

func TestIntervalAmountFollowsBalance(t *testing.T) {
	h := newHarness(t)
	v := newDCA(t, h, 1000)

	fund(t, h, v, 10_000_000)
	assert.Equal(t, uint64(10_000), v.IntervalAmount)

	// The interval is derived from the whole balance, not from the last deposit.
	fund(t, h, v, 2_000_000)
	assert.Equal(t, uint64(12_000), v.IntervalAmount)

	_, err := v.RemoveFunds(h.call(admin), h.gw, 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(7_000_000), v.Balance)
	assert.Equal(t, v.Balance/v.TargetSpend, v.IntervalAmount)
	assert.Equal(t, uint64(5_000_000), h.balance(admin, asset.Native))

	_, err = v.RemoveFunds(h.call(admin), h.gw, 7_000_001)
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)
	assert.Equal(t, uint64(7_000_000), v.Balance)

	removed, err := v.RemoveFunds(h.call(admin), h.gw, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7_000_000), removed)
	assert.Zero(t, v.Balance)
	assert.Zero(t, v.IntervalAmount)
}

func TestZeroTargetSpendNeverDivides(t *testing.T) {
	h := newHarness(t)
	v := newDCA(t, h, 0)

	fund(t, h, v, 5000)
	assert.Zero(t, v.IntervalAmount)
	_, err := v.RemoveFunds(h.call(admin), h.gw, 1000)
	require.NoError(t, err)
	assert.Zero(t, v.IntervalAmount)

	_, err = v.InitiateTransferForSwap(h.call(swapper), h.gw, asset.Native)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	assert.False(t, v.InFlight)
}

func TestUpdateParamsDefersRecompute(t *testing.T) {
	h := newHarness(t)
	v := newDCA(t, h, 100)
	fund(t, h, v, 10_000)
	require.Equal(t, uint64(100), v.IntervalAmount)

	end := h.now.Add(time.Hour)
	require.NoError(t, v.UpdateParams(h.call(admin), vault.Schedule{
		IntervalSeconds: 3600, TargetSpend: 10, TargetBuy: 5, EndTime: end,
	}))
	assert.Equal(t, uint64(100), v.IntervalAmount, "kept until the next fund")
	assert.Equal(t, uint64(3600), v.IntervalSeconds)
	assert.Equal(t, uint64(5), v.TargetBuy)

	fund(t, h, v, 10_000)
	assert.Equal(t, uint64(2000), v.IntervalAmount)

	assert.ErrorIs(t, v.UpdateParams(h.call(orchestrator), vault.Schedule{IntervalSeconds: 1}), model.ErrUnauthorized)
	assert.ErrorIs(t, v.UpdateParams(h.call(admin), vault.Schedule{}), model.ErrInvalidParameter)

	// Funding after the end time is refused.
	h.now = end
	err := v.Fund(h.call(admin), h.gw, 1, h.pay(admin, vaultAddr, asset.Native, 1))
	assert.ErrorIs(t, err, model.ErrInvalidState)
	assert.Equal(t, uint64(20_000), v.Balance)
}

func TestSwapHandshake(t *testing.T) {
	h := newHarness(t)
	v := newDCA(t, h, 1000)
	fund(t, h, v, 10_000_000)

	_, err := v.InitiateTransferForSwap(h.call(admin), h.gw, asset.Native)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = v.InitiateTransferForSwap(h.call(swapper), h.gw, buyToken)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	// Receiving before anything was sent is out of order.
	early := h.pay(swapper, vaultAddr, buyToken, 5)
	assert.ErrorIs(t, v.ReceivePurchasedAsset(h.call(swapper), h.gw, early, 5), model.ErrInvalidState)

	qty, err := v.InitiateTransferForSwap(h.call(swapper), h.gw, asset.Native)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), qty)
	assert.True(t, v.InFlight)
	assert.Equal(t, uint64(9_990_000), v.Balance, "the slice leaves the ledger balance")
	assert.Equal(t, v.Balance/v.TargetSpend, v.IntervalAmount)
	assert.Equal(t, uint64(10_000), h.balance(swapper, asset.Native))
	assert.Equal(t, v.Balance, h.balance(vaultAddr, asset.Native))

	before := *v
	_, err = v.InitiateTransferForSwap(h.call(swapper), h.gw, asset.Native)
	assert.ErrorIs(t, err, model.ErrInvalidState)
	assert.Equal(t, before.Balance, v.Balance)

	// The result must be the buy token, from the counterparty, for the claimed quantity.
	wrongAsset := h.pay(swapper, vaultAddr, asset.Native, 42)
	assert.ErrorIs(t, v.ReceivePurchasedAsset(h.call(swapper), h.gw, wrongAsset, 42), model.ErrInvalidProof)
	fromAdmin := h.pay(admin, vaultAddr, buyToken, 42)
	assert.ErrorIs(t, v.ReceivePurchasedAsset(h.call(swapper), h.gw, fromAdmin, 42), model.ErrInvalidProof)
	assert.True(t, v.InFlight)

	bought := h.pay(swapper, vaultAddr, buyToken, 42)
	assert.ErrorIs(t, v.ReceivePurchasedAsset(h.call(admin), h.gw, bought, 42), model.ErrUnauthorized)
	require.NoError(t, v.ReceivePurchasedAsset(h.call(swapper), h.gw, bought, 42))
	assert.False(t, v.InFlight)
	assert.Equal(t, uint64(42), v.BuyAssetBalance)
	assert.Equal(t, uint64(1), v.SwapCount)
	assert.Equal(t, uint64(10_000), v.TotalSpent)
	assert.Equal(t, uint64(42), v.TotalBought)

	// The same delivery cannot be credited twice.
	_, err = v.InitiateTransferForSwap(h.call(swapper), h.gw, asset.Native)
	require.NoError(t, err)
	assert.ErrorIs(t, v.ReceivePurchasedAsset(h.call(swapper), h.gw, bought, 42), model.ErrInvalidProof)

	_, err = v.ClaimBuyTokens(h.call(swapper), h.gw)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	require.NoError(t, h.ledger.OptIn(receiver, buyToken.TokenID()))
	claimed, err := v.ClaimBuyTokens(h.call(admin), h.gw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claimed)
	assert.Zero(t, v.BuyAssetBalance)
	assert.Equal(t, uint64(42), h.balance(receiver, buyToken))

	stamp := v.LastUpdated
	claimed, err = v.ClaimBuyTokens(h.call(admin), h.gw)
	require.NoError(t, err)
	assert.Zero(t, claimed)
	assert.Equal(t, stamp, v.LastUpdated)
}

func TestDustFinalSlice(t *testing.T) {
	h := newHarness(t)
	v := newDCA(t, h, 1000)
	fund(t, h, v, 999)
	require.Zero(t, v.IntervalAmount)

	qty, err := v.InitiateTransferForSwap(h.call(swapper), h.gw, asset.Native)
	require.NoError(t, err)
	assert.Equal(t, uint64(999), qty)
	assert.Zero(t, v.Balance)

	require.NoError(t, v.ReceivePurchasedAsset(h.call(swapper), h.gw, h.pay(swapper, vaultAddr, buyToken, 3), 3))
	_, err = v.InitiateTransferForSwap(h.call(swapper), h.gw, asset.Native)
	assert.ErrorIs(t, err, model.ErrInvalidState, "empty vault")
}

func TestDCARotateCounterparty(t *testing.T) {
	h := newHarness(t)
	v := newDCA(t, h, 10)
	fund(t, h, v, 100)

	assert.ErrorIs(t, v.RotateCounterparty(h.call(admin), "swapper-2"), model.ErrUnauthorized)

	_, err := v.InitiateTransferForSwap(h.call(swapper), h.gw, asset.Native)
	require.NoError(t, err)
	assert.ErrorIs(t, v.RotateCounterparty(h.call(orchestrator), "swapper-2"), model.ErrInvalidState)
	require.NoError(t, v.ReceivePurchasedAsset(h.call(swapper), h.gw, h.pay(swapper, vaultAddr, buyToken, 1), 1))

	require.NoError(t, v.RotateCounterparty(h.call(orchestrator), "swapper-2"))
	_, err = v.InitiateTransferForSwap(h.call(swapper), h.gw, asset.Native)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = v.InitiateTransferForSwap(h.call("swapper-2"), h.gw, asset.Native)
	require.NoError(t, err)
}

func TestDCADeleteDrains(t *testing.T) {
	h := newHarness(t)
	v := newDCA(t, h, 10)
	fund(t, h, v, 100)
	_, err := v.InitiateTransferForSwap(h.call(swapper), h.gw, asset.Native)
	require.NoError(t, err)
	require.NoError(t, v.ReceivePurchasedAsset(h.call(swapper), h.gw, h.pay(swapper, vaultAddr, buyToken, 7), 7))
	require.NoError(t, h.ledger.OptIn(admin, buyToken.TokenID()))

	assert.ErrorIs(t, v.Delete(h.call(orchestrator), h.gw), model.ErrUnauthorized)
	require.NoError(t, v.Delete(h.call(admin), h.gw))
	assert.True(t, v.Deleted)
	assert.Zero(t, v.Balance)
	assert.Zero(t, v.BuyAssetBalance)
	assert.Equal(t, uint64(90), h.balance(admin, asset.Native))
	assert.Equal(t, uint64(7), h.balance(admin, buyToken))

	err = v.Fund(h.call(admin), h.gw, 1, h.pay(admin, vaultAddr, asset.Native, 1))
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

package vault_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/model"
	"StrategyVault/internal/vault"
)

var usdc = asset.Token(31566704)

func newSwap(t *testing.T, h *harness) *vault.SwapVault {
	t.Helper()
	v, err := vault.NewSwap(h.call(owner), vault.SwapParams{
		ID:           "swap-1",
		Address:      vaultAddr,
		Orchestrator: orchestrator,
		Counterparty: swapper,
	})
	require.NoError(t, err)
	return v
}

func TestSwapVaultLifecycle(t *testing.T) {
	h := newHarness(t)
	v := newSwap(t, h)
	assert.Equal(t, asset.Native, v.Asset)

	_, err := v.InitiateSwap(h.call(owner), h.gw)
	assert.ErrorIs(t, err, model.ErrInvalidState, "empty account")

	// The owner funds the vault account directly; the vault does not track it.
	h.pay(owner, vaultAddr, asset.Native, 5000)
	_, err = v.InitiateSwap(h.call(owner), h.gw)
	assert.ErrorIs(t, err, model.ErrInvalidState, "parameters unset")

	assert.ErrorIs(t, v.SetSwapParams(h.call(owner), 1000, usdc), model.ErrInvalidState, "not opted in")
	assert.ErrorIs(t, v.OptInToAsset(h.call(mallory), h.gw, usdc), model.ErrUnauthorized)
	assert.ErrorIs(t, v.OptInToAsset(h.call(owner), h.gw, asset.Native), model.ErrInvalidParameter)
	require.NoError(t, v.OptInToAsset(h.call(owner), h.gw, usdc))
	require.NoError(t, v.OptInToAsset(h.call(owner), h.gw, usdc))
	assert.Equal(t, []uint64{usdc.TokenID()}, v.OptedIn)

	require.NoError(t, v.SetSwapParams(h.call(owner), 6000, usdc))
	_, err = v.InitiateSwap(h.call(owner), h.gw)
	assert.ErrorIs(t, err, model.ErrInvalidState, "no reserve")

	require.NoError(t, v.AddReserve(h.call(owner), h.gw, 4500, h.pay(owner, vaultAddr, asset.Native, 4500)))
	assert.Equal(t, uint64(4500), v.Reserve)
	_, err = v.InitiateSwap(h.call(owner), h.gw)
	assert.ErrorIs(t, err, model.ErrInsufficientBalance, "9500 observable leaves 5000 above the reserve")

	require.NoError(t, v.SetSwapParams(h.call(owner), 1000, usdc))
	_, err = v.InitiateSwap(h.call(mallory), h.gw)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	req, err := v.InitiateSwap(h.call(owner), h.gw)
	require.NoError(t, err)
	assert.Equal(t, vault.SwapRequest{Vault: "swap-1", ToAsset: usdc, Amount: 1000}, req)
	assert.True(t, v.InFlight)
	assert.Equal(t, uint64(8500), h.balance(vaultAddr, asset.Native))

	incoming := h.ledger.IncomingTo(swapper)
	require.Len(t, incoming, 1)
	assert.Equal(t, uint64(1000), incoming[0].Amount)
	parsed, err := vault.ParseSwapRequest(incoming[0].Note)
	require.NoError(t, err)
	assert.Equal(t, req, parsed)

	_, err = v.InitiateSwap(h.call(owner), h.gw)
	assert.ErrorIs(t, err, model.ErrInvalidState, "already in flight")
	assert.ErrorIs(t, v.SetSwapParams(h.call(owner), 1, usdc), model.ErrInvalidState)
	assert.ErrorIs(t, v.RotateCounterparty(h.call(orchestrator), "swapper-2"), model.ErrInvalidState)
	assert.ErrorIs(t, v.Delete(h.call(owner)), model.ErrInvalidState)
	_, err = v.SweepSwappedAsset(h.call(orchestrator), h.gw, "treasury")
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)

	proceeds := h.pay(swapper, vaultAddr, usdc, 77)
	assert.ErrorIs(t, v.ReceiveSwapResult(h.call(owner), h.gw, proceeds, 77), model.ErrUnauthorized)
	assert.ErrorIs(t, v.ReceiveSwapResult(h.call(swapper), h.gw, proceeds, 78), model.ErrInvalidProof)
	assert.True(t, v.InFlight)
	require.NoError(t, v.ReceiveSwapResult(h.call(swapper), h.gw, proceeds, 77))
	assert.False(t, v.InFlight)
	assert.Equal(t, uint64(77), v.SwappedBalance)

	assert.ErrorIs(t, v.Delete(h.call(owner)), model.ErrInvalidState, "proceeds not swept")

	_, err = v.SweepSwappedAsset(h.call(owner), h.gw, owner)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = v.SweepSwappedAsset(h.call(orchestrator), h.gw, "")
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	// A destination that cannot receive the token fails the whole sweep.
	_, err = v.SweepSwappedAsset(h.call(orchestrator), h.gw, "treasury")
	assert.ErrorIs(t, err, model.ErrTransfer)
	assert.Equal(t, uint64(77), v.SwappedBalance)

	require.NoError(t, h.ledger.OptIn("treasury", usdc.TokenID()))
	swept, err := v.SweepSwappedAsset(h.call(orchestrator), h.gw, "treasury")
	require.NoError(t, err)
	assert.Equal(t, uint64(77), swept)
	assert.Zero(t, v.SwappedBalance)
	assert.Equal(t, uint64(77), h.balance("treasury", usdc))

	require.NoError(t, v.Delete(h.call(owner)))
	assert.True(t, v.Deleted)
	assert.Equal(t, uint64(8500), h.balance(vaultAddr, asset.Native))
	assert.ErrorIs(t, v.AddReserve(h.call(owner), h.gw, 1, h.pay(owner, vaultAddr, asset.Native, 1)), model.ErrInvalidState)
}

func TestSwapVaultRotateCounterparty(t *testing.T) {
	h := newHarness(t)
	v := newSwap(t, h)

	assert.ErrorIs(t, v.RotateCounterparty(h.call(owner), "swapper-2"), model.ErrUnauthorized)
	assert.ErrorIs(t, v.RotateCounterparty(h.call(orchestrator), ""), model.ErrInvalidParameter)
	require.NoError(t, v.RotateCounterparty(h.call(orchestrator), "swapper-2"))
	assert.Equal(t, model.Address("swapper-2"), v.Roles.Get("counterparty"))
}

func TestSwapNoteCodec(t *testing.T) {
	req := vault.SwapRequest{Vault: "tenant:swap:7", ToAsset: asset.Token(31566704), Amount: 250}
	assert.Equal(t, "swap/v1:tenant:swap:7:31566704:250", string(req.Encode()))

	parsed, err := vault.ParseSwapRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, parsed)

	for _, note := range []string{"", "swap/v2:a:1:2", "swap/v1:a:x:2", "swap/v1:a:1:-2", "swap/v1:1:2"} {
		_, err := vault.ParseSwapRequest([]byte(note))
		assert.Error(t, err, note)
	}
}

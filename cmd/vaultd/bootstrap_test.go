package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/config"
	"StrategyVault/internal/custody"
	"StrategyVault/internal/hostledger"
	"StrategyVault/internal/model"
	"StrategyVault/internal/store"
	"StrategyVault/internal/vault"
)

func TestBootstrapVaults(t *testing.T) {
	st, err := store.OpenBolt(filepath.Join(t.TempDir(), "vaults.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ledger := hostledger.New()
	mgr := custody.NewManager(ledger, st, custody.Options{})

	defs := []config.VaultDef{
		{ID: "fund-a", Kind: "fund", Creator: "alice", Orchestrator: "ops", Variant: "reserve"},
		{ID: "dca-a", Kind: "dca", Creator: "alice", Orchestrator: "ops", Counterparty: "keeper",
			BuyAsset: "token:31566704", IntervalSeconds: 60, TargetSpend: 10},
		{ID: "swap-a", Kind: "swap", Creator: "bob", Orchestrator: "ops", Counterparty: "keeper"},
	}
	require.NoError(t, bootstrapVaults(mgr, defs, zap.NewNop()))

	recs, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, recs, 3)

	dca, err := mgr.Get("dca-a")
	require.NoError(t, err)
	assert.Equal(t, asset.Token(31566704), dca.DCA.BuyAsset)
	assert.Equal(t, model.Address("alice"), dca.DCA.BuyTokenReceiver)
	fund, err := mgr.Get("fund-a")
	require.NoError(t, err)
	assert.Equal(t, vault.FundReserve, fund.Fund.Variant)

	// A restart leaves existing vaults untouched.
	addr := fund.Fund.Address
	require.NoError(t, bootstrapVaults(mgr, defs, zap.NewNop()))
	again, err := mgr.Get("fund-a")
	require.NoError(t, err)
	assert.Equal(t, addr, again.Fund.Address)
}

func TestBootstrapRejectsInvalidVault(t *testing.T) {
	st, err := store.OpenFile(filepath.Join(t.TempDir(), "vaults.json"))
	require.NoError(t, err)
	mgr := custody.NewManager(hostledger.New(), st, custody.Options{})

	err = bootstrapVaults(mgr, []config.VaultDef{{ID: "swap-a", Kind: "swap", Creator: "bob", Orchestrator: "ops"}}, zap.NewNop())
	assert.ErrorIs(t, err, model.ErrInvalidParameter, "swap vaults need a counterparty")
}

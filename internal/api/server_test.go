package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"StrategyVault/internal/api"
	"StrategyVault/internal/asset"
	"StrategyVault/internal/custody"
	"StrategyVault/internal/hostledger"
	"StrategyVault/internal/metrics"
	"StrategyVault/internal/model"
	"StrategyVault/internal/recorder"
	"StrategyVault/internal/role"
	"StrategyVault/internal/store"
	"StrategyVault/internal/vault"
)

const (
	owner        model.Address = "owner"
	orchestrator model.Address = "orchestrator"
)

func newServer(t *testing.T) (*httptest.Server, *custody.Manager, *hostledger.Ledger) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.OpenFile(filepath.Join(dir, "vaults.json"))
	require.NoError(t, err)
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(dir, "events.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	ledger := hostledger.New()
	m := metrics.New()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mgr := custody.NewManager(ledger, st, custody.Options{
		Recorder: rec,
		Metrics:  m,
		Now: func() time.Time {
			now = now.Add(time.Minute)
			return now
		},
	})
	srv := httptest.NewServer(api.New(mgr, m, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv, mgr, ledger
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestVaultRoutes(t *testing.T) {
	srv, mgr, ledger := newServer(t)

	rec, err := mgr.CreateFund(owner, vault.FundParams{ID: "fund-a", Orchestrator: orchestrator})
	require.NoError(t, err)
	_, err = mgr.CreateSwap(owner, vault.SwapParams{ID: "swap-a", Orchestrator: orchestrator, Counterparty: "keeper"})
	require.NoError(t, err)

	require.NoError(t, ledger.Mint(owner, asset.Native, 500))
	proof, err := ledger.Transfer(owner, rec.Fund.Address, asset.Native, 500, nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Deposit("fund-a", owner, 500, proof))

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, "ok", health["status"])

	var all []api.VaultView
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/vaults", &all))
	require.Len(t, all, 2)
	assert.Equal(t, "fund-a", all[0].ID)
	assert.Equal(t, "swap-a", all[1].ID)
	assert.Nil(t, all[0].Detail)

	var swaps []api.VaultView
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/vaults?kind=swap", &swaps))
	require.Len(t, swaps, 1)
	assert.Equal(t, vault.KindSwap, swaps[0].Kind)

	var one api.VaultView
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/vaults/fund-a", &one))
	assert.Equal(t, uint64(500), one.Balance)
	assert.Equal(t, "native", one.Asset)
	assert.Equal(t, rec.Fund.Address, one.Address)
	assert.Equal(t, orchestrator, one.Roles[role.Orchestrator])
	assert.NotNil(t, one.Detail)

	var events []model.Event
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/vaults/fund-a/events?limit=10", &events))
	require.Len(t, events, 2)
	assert.Equal(t, custody.OpDeposit, events[0].Op)
	assert.Equal(t, custody.OpCreate, events[1].Op)
}

func TestErrorResponses(t *testing.T) {
	srv, _, _ := newServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/vaults/missing", &body))
	assert.Equal(t, string(model.KindNotFound), body["kind"])

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/vaults/missing/events", nil))
}

func TestEventLimitValidation(t *testing.T) {
	srv, mgr, _ := newServer(t)
	_, err := mgr.CreateFund(owner, vault.FundParams{ID: "fund-a", Orchestrator: orchestrator})
	require.NoError(t, err)

	for _, raw := range []string{"0", "-1", "abc", "501"} {
		t.Run(raw, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/vaults/fund-a/events?limit="+raw, nil))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, mgr, _ := newServer(t)
	_, err := mgr.CreateFund(owner, vault.FundParams{ID: "fund-a", Orchestrator: orchestrator})
	require.NoError(t, err)

	getJSON(t, srv.URL+"/healthz", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, `strategyvault_vault_operations_total{kind="fund",op="create",result="ok"} 1`)
	assert.Contains(t, out, `strategyvault_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

package recorder_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"StrategyVault/internal/model"
	"StrategyVault/internal/recorder"
)

func TestSQLiteRecorder(t *testing.T) {
	r, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, op := range []string{"deposit", "withdraw", "sweep"} {
		evt := &model.Event{
			ID: op, VaultID: "fund-1", VaultKind: "fund", Op: op, Caller: "owner",
			Asset: "native", Amount: uint64(100 * (i + 1)), BalanceBefore: 1000, BalanceAfter: 900,
			At: base.Add(time.Duration(i) * time.Minute),
		}
		if op == "sweep" {
			evt.ErrKind = model.KindAuthorization
			evt.Error = "unauthorized: owner is not orchestrator"
		}
		require.NoError(t, r.RecordEvent(evt))
	}
	require.NoError(t, r.RecordEvent(&model.Event{ID: "other", VaultID: "dca-1", Op: "fund", At: base}))
	assert.Error(t, r.RecordEvent(&model.Event{ID: "deposit", VaultID: "fund-1", At: base}), "duplicate id")

	events, err := r.RecentEvents("fund-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "sweep", events[0].Op)
	assert.True(t, events[0].Rejected())
	assert.Equal(t, model.KindAuthorization, events[0].ErrKind)
	assert.Equal(t, "withdraw", events[1].Op)
	assert.Equal(t, uint64(200), events[1].Amount)
	assert.Equal(t, model.Address("owner"), events[1].Caller)
	assert.True(t, events[1].At.Equal(base.Add(time.Minute)))

	require.NoError(t, r.RecordSwap(&recorder.SwapEvent{
		VaultID: "dca-1", VaultKind: "dca", Leg: "SETTLE", Counterparty: "keeper",
		PaidAsset: "native", PaidAmount: 10, ReceivedAsset: "token:9", ReceivedAmt: 20,
	}))
}

func TestNoopRecorder(t *testing.T) {
	var r recorder.Recorder = recorder.NewNoopRecorder()
	require.NoError(t, r.RecordEvent(&model.Event{}))
	events, err := r.RecentEvents("x", 1)
	require.NoError(t, err)
	assert.Empty(t, events)
	require.NoError(t, r.Close())
}

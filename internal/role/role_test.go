package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StrategyVault/internal/model"
)

func TestRequire(t *testing.T) {
	reg := Registry{Owner: "alice", Orchestrator: "orch"}

	require.NoError(t, reg.Require("alice", Owner))
	assert.ErrorIs(t, reg.Require("mallory", Owner), model.ErrUnauthorized)
	assert.ErrorIs(t, reg.Require("orch", Owner), model.ErrUnauthorized)

	// An unset role is held by nobody, including the empty caller.
	assert.ErrorIs(t, reg.Require("", Counterparty), model.ErrUnauthorized)
}

func TestRequireAny(t *testing.T) {
	reg := Registry{Owner: "alice", Admin: "bob"}

	assert.NoError(t, reg.RequireAny("bob", Owner, Admin))
	assert.ErrorIs(t, reg.RequireAny("carol", Owner, Admin), model.ErrUnauthorized)
}

func TestRotateCounterparty(t *testing.T) {
	tests := []struct {
		name   string
		caller model.Address
		next   model.Address
		err    error
	}{
		{"orchestrator rotates", "orch", "swapper-2", nil},
		{"owner cannot rotate", "alice", "swapper-2", model.ErrUnauthorized},
		{"counterparty cannot rotate itself", "swapper-1", "swapper-2", model.ErrUnauthorized},
		{"empty address", "orch", "", model.ErrInvalidParameter},
		{"orchestrator as counterparty", "orch", "orch", model.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := Registry{Owner: "alice", Orchestrator: "orch", Counterparty: "swapper-1"}
			err := reg.RotateCounterparty(tt.caller, tt.next)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Equal(t, model.Address("swapper-1"), reg.Get(Counterparty))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.next, reg.Get(Counterparty))
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	reg := Registry{Counterparty: "a"}
	c := reg.Clone()
	c[Counterparty] = "b"
	assert.Equal(t, model.Address("a"), reg[Counterparty])
}

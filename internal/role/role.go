// Package role holds the privileged identities of a vault.
package role

import (
	"fmt"

	"StrategyVault/internal/model"
)

// Role names a privileged identity.
type Role string

const (
	Owner        Role = "owner"
	Admin        Role = "admin"
	Orchestrator Role = "orchestrator"
	Counterparty Role = "counterparty"
)

// Registry maps roles to the addresses that hold them. It is part of the
// persisted vault state.
type Registry map[Role]model.Address

// Clone returns an independent copy.
func (r Registry) Clone() Registry {
	out := make(Registry, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the holder of role, empty when unset.
func (r Registry) Get(role Role) model.Address { return r[role] }

// Require fails with model.ErrUnauthorized unless caller holds role.
func (r Registry) Require(caller model.Address, role Role) error {
	holder := r[role]
	if holder.IsZero() || caller != holder {
		return fmt.Errorf("%w: %s is not %s", model.ErrUnauthorized, caller, role)
	}
	return nil
}

// RequireAny passes when caller holds at least one of roles.
func (r Registry) RequireAny(caller model.Address, roles ...Role) error {
	for _, role := range roles {
		if r.Require(caller, role) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s holds none of %v", model.ErrUnauthorized, caller, roles)
}

// RotateCounterparty replaces the counterparty. Only the orchestrator may do
// so; it is the sole rotation a vault allows.
func (r Registry) RotateCounterparty(caller, next model.Address) error {
	if err := r.Require(caller, Orchestrator); err != nil {
		return err
	}
	if next.IsZero() {
		return fmt.Errorf("%w: empty counterparty", model.ErrInvalidParameter)
	}
	if next == r[Orchestrator] {
		return fmt.Errorf("%w: counterparty must differ from orchestrator", model.ErrInvalidParameter)
	}
	r[Counterparty] = next
	return nil
}

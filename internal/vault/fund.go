package vault

import (
	"fmt"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/model"
	"StrategyVault/internal/role"
)

// FundVariant selects the reserve accounting of a fund vault.
type FundVariant string

const (
	// FundPlain tracks no reserve. Deleting it does not return the balance.
	FundPlain FundVariant = "plain"
	// FundReserve keeps a minimum-balance reserve that withdrawals and
	// sweeps never touch. Deleting it does not return the balance either.
	FundReserve FundVariant = "reserve"
)

// FundVault is a pooled balance owned by one depositor and swept by an
// orchestrator.
type FundVault struct {
	Header
	Variant FundVariant `json:"variant"`
	Balance uint64      `json:"balance"`
	Reserve uint64      `json:"reserve"`
}

// FundParams are the creation-time parameters of a fund vault. The owner is
// the creating caller.
type FundParams struct {
	ID           string
	Address      model.Address
	Orchestrator model.Address
	Asset        asset.Ref
	Variant      FundVariant
}

// NewFund creates a fund vault owned by c.Caller.
func NewFund(c Call, p FundParams) (*FundVault, error) {
	if p.Variant == "" {
		p.Variant = FundPlain
	}
	if p.Variant != FundPlain && p.Variant != FundReserve {
		return nil, fmt.Errorf("%w: unknown fund variant %q", model.ErrInvalidParameter, p.Variant)
	}
	if c.Caller.IsZero() || p.Orchestrator.IsZero() {
		return nil, fmt.Errorf("%w: owner and orchestrator are required", model.ErrInvalidParameter)
	}
	h, err := newHeader(p.ID, p.Address, role.Registry{
		role.Owner:        c.Caller,
		role.Orchestrator: p.Orchestrator,
	}, p.Asset, c.Now)
	if err != nil {
		return nil, err
	}
	return &FundVault{Header: h, Variant: p.Variant}, nil
}

func (v *FundVault) clone() FundVault {
	next := *v
	next.Header = v.Header.clone()
	return next
}

// Spendable is the part of the balance that withdrawals and sweeps may take.
func (v *FundVault) Spendable() uint64 {
	if v.Variant == FundReserve {
		return v.Balance - v.Reserve
	}
	return v.Balance
}

// Deposit credits amount after verifying the owner's inbound transfer.
func (v *FundVault) Deposit(c Call, gw *asset.Gateway, amount uint64, proof asset.Transfer) error {
	return v.deposit(c, gw, amount, proof, false)
}

// DepositReserve credits amount to both the balance and the reserve. Only
// reserve-aware vaults accept it.
func (v *FundVault) DepositReserve(c Call, gw *asset.Gateway, amount uint64, proof asset.Transfer) error {
	if v.Variant != FundReserve {
		return fmt.Errorf("%w: %s vault keeps no reserve", model.ErrInvalidState, v.Variant)
	}
	return v.deposit(c, gw, amount, proof, true)
}

func (v *FundVault) deposit(c Call, gw *asset.Gateway, amount uint64, proof asset.Transfer, reserve bool) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Owner); err != nil {
		return err
	}
	if err := requirePositive("deposit amount", amount); err != nil {
		return err
	}

	next := v.clone()
	var err error
	if next.Balance, err = credit(next.Balance, amount); err != nil {
		return err
	}
	if reserve {
		if next.Reserve, err = credit(next.Reserve, amount); err != nil {
			return err
		}
	}
	if err := gw.VerifyInbound(proof, v.Roles.Get(role.Owner), amount, v.Asset); err != nil {
		return err
	}
	next.LastUpdated = c.Now
	*v = next
	return nil
}

// Withdraw sends amount to the owner. Zero withdraws everything spendable.
// It returns the amount actually sent.
func (v *FundVault) Withdraw(c Call, gw *asset.Gateway, amount uint64) (uint64, error) {
	if err := v.live(); err != nil {
		return 0, err
	}
	if err := v.Roles.Require(c.Caller, role.Owner); err != nil {
		return 0, err
	}
	return v.debit(c, gw, amount, v.Roles.Get(role.Owner))
}

// Sweep sends amount to destination on the orchestrator's behalf. Zero sweeps
// everything spendable.
func (v *FundVault) Sweep(c Call, gw *asset.Gateway, amount uint64, destination model.Address) (uint64, error) {
	if err := v.live(); err != nil {
		return 0, err
	}
	if err := v.Roles.Require(c.Caller, role.Orchestrator); err != nil {
		return 0, err
	}
	if destination.IsZero() {
		return 0, fmt.Errorf("%w: empty sweep destination", model.ErrInvalidParameter)
	}
	return v.debit(c, gw, amount, destination)
}

func (v *FundVault) debit(c Call, gw *asset.Gateway, amount uint64, receiver model.Address) (uint64, error) {
	spendable := v.Spendable()
	if amount == 0 {
		amount = spendable
	}
	if amount > spendable {
		return 0, fmt.Errorf("%w: requested %d, spendable %d", model.ErrInsufficientBalance, amount, spendable)
	}

	next := v.clone()
	next.Balance -= amount
	if _, err := gw.Send(v.Asset, amount, receiver, nil); err != nil {
		return 0, err
	}
	next.LastUpdated = c.Now
	*v = next
	return amount, nil
}

// Delete retires the vault. Fund vaults do not drain on delete: whatever
// balance remains stays on the vault account.
func (v *FundVault) Delete(c Call) error {
	if err := v.live(); err != nil {
		return err
	}
	if err := v.Roles.Require(c.Caller, role.Owner); err != nil {
		return err
	}
	v.Deleted = true
	v.LastUpdated = c.Now
	return nil
}

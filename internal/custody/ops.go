package custody

import (
	"fmt"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/model"
	"StrategyVault/internal/vault"
)

func fundOf(rec *vault.Record) (*vault.FundVault, error) {
	if rec.Kind != vault.KindFund || rec.Fund == nil {
		return nil, fmt.Errorf("%w: vault %s is a %s vault, not fund", model.ErrInvalidState, rec.ID, rec.Kind)
	}
	return rec.Fund, nil
}

func dcaOf(rec *vault.Record) (*vault.DCAVault, error) {
	if rec.Kind != vault.KindDCA || rec.DCA == nil {
		return nil, fmt.Errorf("%w: vault %s is a %s vault, not dca", model.ErrInvalidState, rec.ID, rec.Kind)
	}
	return rec.DCA, nil
}

func swapOf(rec *vault.Record) (*vault.SwapVault, error) {
	if rec.Kind != vault.KindSwap || rec.Swap == nil {
		return nil, fmt.Errorf("%w: vault %s is a %s vault, not swap", model.ErrInvalidState, rec.ID, rec.Kind)
	}
	return rec.Swap, nil
}

// CreateFund creates a fund vault owned by caller on a fresh host account.
// ID and Address in p are assigned by the manager when empty.
func (m *Manager) CreateFund(caller model.Address, p vault.FundParams) (*vault.Record, error) {
	return m.create(vault.KindFund, caller, p.ID, func(id string, addr model.Address, c vault.Call) (*vault.Record, error) {
		p.ID, p.Address = id, addr
		v, err := vault.NewFund(c, p)
		if err != nil {
			return nil, err
		}
		return &vault.Record{ID: id, Kind: vault.KindFund, Fund: v}, nil
	}, p.Asset)
}

// CreateDCA creates a DCA vault; caller becomes admin unless p.Admin is set.
func (m *Manager) CreateDCA(caller model.Address, p vault.DCAParams) (*vault.Record, error) {
	return m.create(vault.KindDCA, caller, p.ID, func(id string, addr model.Address, c vault.Call) (*vault.Record, error) {
		p.ID, p.Address = id, addr
		v, err := vault.NewDCA(c, p)
		if err != nil {
			return nil, err
		}
		return &vault.Record{ID: id, Kind: vault.KindDCA, DCA: v}, nil
	}, p.Asset, p.BuyAsset)
}

// CreateSwap creates a swap-initiator vault owned by caller.
func (m *Manager) CreateSwap(caller model.Address, p vault.SwapParams) (*vault.Record, error) {
	return m.create(vault.KindSwap, caller, p.ID, func(id string, addr model.Address, c vault.Call) (*vault.Record, error) {
		p.ID, p.Address = id, addr
		v, err := vault.NewSwap(c, p)
		if err != nil {
			return nil, err
		}
		return &vault.Record{ID: id, Kind: vault.KindSwap, Swap: v}, nil
	})
}

func (m *Manager) Deposit(id string, caller model.Address, amount uint64, proof asset.Transfer) error {
	_, err := m.exec(id, OpDeposit, caller, amount, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := fundOf(rec)
		if err != nil {
			return 0, err
		}
		return 0, v.Deposit(c, gw, amount, proof)
	})
	return err
}

func (m *Manager) DepositReserve(id string, caller model.Address, amount uint64, proof asset.Transfer) error {
	_, err := m.exec(id, OpDepositReserve, caller, amount, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := fundOf(rec)
		if err != nil {
			return 0, err
		}
		return 0, v.DepositReserve(c, gw, amount, proof)
	})
	return err
}

// Withdraw returns the amount actually sent to the owner.
func (m *Manager) Withdraw(id string, caller model.Address, amount uint64) (uint64, error) {
	return m.exec(id, OpWithdraw, caller, amount, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := fundOf(rec)
		if err != nil {
			return 0, err
		}
		return v.Withdraw(c, gw, amount)
	})
}

// Sweep returns the amount actually sent to destination.
func (m *Manager) Sweep(id string, caller model.Address, amount uint64, destination model.Address) (uint64, error) {
	return m.exec(id, OpSweep, caller, amount, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := fundOf(rec)
		if err != nil {
			return 0, err
		}
		return v.Sweep(c, gw, amount, destination)
	})
}

func (m *Manager) UpdateParams(id string, caller model.Address, s vault.Schedule) error {
	_, err := m.exec(id, OpUpdateParams, caller, 0, func(rec *vault.Record, c vault.Call, _ *asset.Gateway) (uint64, error) {
		v, err := dcaOf(rec)
		if err != nil {
			return 0, err
		}
		return 0, v.UpdateParams(c, s)
	})
	return err
}

func (m *Manager) Fund(id string, caller model.Address, amount uint64, proof asset.Transfer) error {
	_, err := m.exec(id, OpFund, caller, amount, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := dcaOf(rec)
		if err != nil {
			return 0, err
		}
		return 0, v.Fund(c, gw, amount, proof)
	})
	return err
}

func (m *Manager) RemoveFunds(id string, caller model.Address, quantity uint64) (uint64, error) {
	return m.exec(id, OpRemoveFunds, caller, quantity, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := dcaOf(rec)
		if err != nil {
			return 0, err
		}
		return v.RemoveFunds(c, gw, quantity)
	})
}

func (m *Manager) ClaimBuyTokens(id string, caller model.Address) (uint64, error) {
	return m.exec(id, OpClaimBuyTokens, caller, 0, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := dcaOf(rec)
		if err != nil {
			return 0, err
		}
		return v.ClaimBuyTokens(c, gw)
	})
}

// InitiateTransferForSwap returns the slice sent to the counterparty.
func (m *Manager) InitiateTransferForSwap(id string, caller model.Address, ref asset.Ref) (uint64, error) {
	return m.exec(id, OpInitiateTransferForSwap, caller, 0, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := dcaOf(rec)
		if err != nil {
			return 0, err
		}
		return v.InitiateTransferForSwap(c, gw, ref)
	})
}

func (m *Manager) ReceivePurchasedAsset(id string, caller model.Address, proof asset.Transfer, quantity uint64) error {
	_, err := m.exec(id, OpReceivePurchasedAsset, caller, quantity, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := dcaOf(rec)
		if err != nil {
			return 0, err
		}
		return 0, v.ReceivePurchasedAsset(c, gw, proof, quantity)
	})
	return err
}

func (m *Manager) OptInToAsset(id string, caller model.Address, ref asset.Ref) error {
	_, err := m.exec(id, OpOptInToAsset, caller, 0, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := swapOf(rec)
		if err != nil {
			return 0, err
		}
		return 0, v.OptInToAsset(c, gw, ref)
	})
	return err
}

func (m *Manager) AddReserve(id string, caller model.Address, amount uint64, proof asset.Transfer) error {
	_, err := m.exec(id, OpAddReserve, caller, amount, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := swapOf(rec)
		if err != nil {
			return 0, err
		}
		return 0, v.AddReserve(c, gw, amount, proof)
	})
	return err
}

func (m *Manager) SetSwapParams(id string, caller model.Address, amount uint64, to asset.Ref) error {
	_, err := m.exec(id, OpSetSwapParams, caller, amount, func(rec *vault.Record, c vault.Call, _ *asset.Gateway) (uint64, error) {
		v, err := swapOf(rec)
		if err != nil {
			return 0, err
		}
		return 0, v.SetSwapParams(c, amount, to)
	})
	return err
}

// RotateCounterparty applies to DCA and swap-initiator vaults.
func (m *Manager) RotateCounterparty(id string, caller, next model.Address) error {
	_, err := m.exec(id, OpRotateCounterparty, caller, 0, func(rec *vault.Record, c vault.Call, _ *asset.Gateway) (uint64, error) {
		switch rec.Kind {
		case vault.KindDCA:
			v, err := dcaOf(rec)
			if err != nil {
				return 0, err
			}
			return 0, v.RotateCounterparty(c, next)
		case vault.KindSwap:
			v, err := swapOf(rec)
			if err != nil {
				return 0, err
			}
			return 0, v.RotateCounterparty(c, next)
		}
		return 0, fmt.Errorf("%w: %s vaults have no counterparty", model.ErrInvalidState, rec.Kind)
	})
	return err
}

// InitiateSwap returns the request attached to the payment.
func (m *Manager) InitiateSwap(id string, caller model.Address) (vault.SwapRequest, error) {
	var req vault.SwapRequest
	_, err := m.exec(id, OpInitiateSwap, caller, 0, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := swapOf(rec)
		if err != nil {
			return 0, err
		}
		if req, err = v.InitiateSwap(c, gw); err != nil {
			return 0, err
		}
		return req.Amount, nil
	})
	if err != nil {
		return vault.SwapRequest{}, err
	}
	return req, nil
}

func (m *Manager) ReceiveSwapResult(id string, caller model.Address, proof asset.Transfer, quantity uint64) error {
	_, err := m.exec(id, OpReceiveSwapResult, caller, quantity, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := swapOf(rec)
		if err != nil {
			return 0, err
		}
		return 0, v.ReceiveSwapResult(c, gw, proof, quantity)
	})
	return err
}

func (m *Manager) SweepSwappedAsset(id string, caller, destination model.Address) (uint64, error) {
	return m.exec(id, OpSweepSwappedAsset, caller, 0, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		v, err := swapOf(rec)
		if err != nil {
			return 0, err
		}
		return v.SweepSwappedAsset(c, gw, destination)
	})
}

// Delete retires any vault. What happens to its funds depends on the family:
// fund vaults keep them, DCA vaults drain to the admin and swap-initiator
// vaults must already be empty.
func (m *Manager) Delete(id string, caller model.Address) error {
	_, err := m.exec(id, OpDelete, caller, 0, func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error) {
		switch rec.Kind {
		case vault.KindFund:
			v, err := fundOf(rec)
			if err != nil {
				return 0, err
			}
			return 0, v.Delete(c)
		case vault.KindDCA:
			v, err := dcaOf(rec)
			if err != nil {
				return 0, err
			}
			return 0, v.Delete(c, gw)
		case vault.KindSwap:
			v, err := swapOf(rec)
			if err != nil {
				return 0, err
			}
			return 0, v.Delete(c)
		}
		return 0, fmt.Errorf("%w: unknown vault kind %q", model.ErrInvalidState, rec.Kind)
	})
	return err
}

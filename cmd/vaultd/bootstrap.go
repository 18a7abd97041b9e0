package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/config"
	"StrategyVault/internal/custody"
	"StrategyVault/internal/model"
	"StrategyVault/internal/vault"
)

// bootstrapVaults creates the configured vaults that are not stored yet.
// Existing vaults are left as they are, so restarts are idempotent.
func bootstrapVaults(mgr *custody.Manager, defs []config.VaultDef, logger *zap.Logger) error {
	for _, d := range defs {
		if _, err := mgr.Get(d.ID); err == nil {
			continue
		} else if !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("lookup vault %s: %w", d.ID, err)
		}
		if err := createVault(mgr, d); err != nil {
			return fmt.Errorf("bootstrap vault %s: %w", d.ID, err)
		}
		logger.Info("vault bootstrapped", zap.String("vault", d.ID), zap.String("kind", d.Kind))
	}
	return nil
}

func createVault(mgr *custody.Manager, d config.VaultDef) error {
	creator := model.Address(d.Creator)
	ref, err := asset.ParseRef(d.Asset)
	if err != nil {
		return err
	}
	switch vault.Kind(d.Kind) {
	case vault.KindFund:
		_, err = mgr.CreateFund(creator, vault.FundParams{
			ID:           d.ID,
			Orchestrator: model.Address(d.Orchestrator),
			Asset:        ref,
			Variant:      vault.FundVariant(d.Variant),
		})
	case vault.KindDCA:
		buy, perr := asset.ParseRef(d.BuyAsset)
		if perr != nil {
			return perr
		}
		_, err = mgr.CreateDCA(creator, vault.DCAParams{
			ID:               d.ID,
			Orchestrator:     model.Address(d.Orchestrator),
			Counterparty:     model.Address(d.Counterparty),
			BuyTokenReceiver: model.Address(d.Receiver),
			Asset:            ref,
			BuyAsset:         buy,
			IntervalSeconds:  d.IntervalSeconds,
			TargetSpend:      d.TargetSpend,
		})
	case vault.KindSwap:
		_, err = mgr.CreateSwap(creator, vault.SwapParams{
			ID:           d.ID,
			Orchestrator: model.Address(d.Orchestrator),
			Counterparty: model.Address(d.Counterparty),
		})
	default:
		err = fmt.Errorf("%w: unknown vault kind %q", model.ErrInvalidParameter, d.Kind)
	}
	return err
}

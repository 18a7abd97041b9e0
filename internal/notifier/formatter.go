package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"StrategyVault/internal/model"
	"StrategyVault/internal/vault"
)

// VaultView pairs a stored vault with its live balance view.
type VaultView struct {
	Record   *vault.Record
	Snapshot vault.Snapshot
}

// Notable reports whether evt is pushed to the chat: swap legs that went
// through and any operation refused for lack of authority.
func Notable(evt *model.Event) bool {
	if evt.Rejected() {
		return evt.ErrKind == model.KindAuthorization
	}
	switch evt.Op {
	case "initiate_transfer_for_swap", "initiate_swap", "receive_purchased_asset", "receive_swap_result":
		return true
	}
	return false
}

// FormatEvent formats a single vault event.
func FormatEvent(evt *model.Event) string {
	id := html.EscapeString(evt.VaultID)
	if evt.Rejected() {
		return fmt.Sprintf("🚫 <b>Rejected</b> | %s\n\n%s by %s\n%s: %s",
			id, evt.Op, html.EscapeString(string(evt.Caller)), evt.ErrKind, html.EscapeString(evt.Error))
	}
	switch evt.Op {
	case "initiate_transfer_for_swap", "initiate_swap":
		return fmt.Sprintf("🔄 <b>Swap initiated</b> | %s\n\nPaid: %d %s\nBalance: %d → %d",
			id, evt.Amount, evt.Asset, evt.BalanceBefore, evt.BalanceAfter)
	case "receive_purchased_asset", "receive_swap_result":
		return fmt.Sprintf("✅ <b>Swap settled</b> | %s\n\nReceived: %d", id, evt.Amount)
	}
	return fmt.Sprintf("ℹ️ %s | %s\nAmount: %d %s\nBalance: %d → %d",
		evt.Op, id, evt.Amount, evt.Asset, evt.BalanceBefore, evt.BalanceAfter)
}

// FormatVaultStatus formats one vault for display.
func FormatVaultStatus(v VaultView) string {
	rec, snap := v.Record, v.Snapshot
	h := rec.Header()
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>Vault %s</b> (%s)\n\n", html.EscapeString(rec.ID), rec.Kind))
	if h != nil {
		b.WriteString(fmt.Sprintf("Account: %s\n", html.EscapeString(string(h.Address))))
	}
	b.WriteString(fmt.Sprintf("Balance: %d %s\n", snap.Balance, snap.Asset))
	if snap.Reserve > 0 {
		b.WriteString(fmt.Sprintf("Reserve: %d\n", snap.Reserve))
	}

	switch {
	case rec.DCA != nil:
		d := rec.DCA
		b.WriteString(fmt.Sprintf("Buying: %s every %ds\n", d.BuyAsset, d.IntervalSeconds))
		b.WriteString(fmt.Sprintf("Slice: %d (target %d cycles)\n", d.IntervalAmount, d.TargetSpend))
		b.WriteString(fmt.Sprintf("Bought, unclaimed: %d\n", d.BuyAssetBalance))
		b.WriteString(fmt.Sprintf("Swaps: %d | spent %d | bought %d\n", d.SwapCount, d.TotalSpent, d.TotalBought))
	case rec.Swap != nil:
		s := rec.Swap
		if s.SwapAmount > 0 {
			b.WriteString(fmt.Sprintf("Request: %d native → %s\n", s.SwapAmount, s.SwapToAsset))
		}
		b.WriteString(fmt.Sprintf("Swapped, unswept: %d\n", s.SwappedBalance))
	}
	if snap.InFlight {
		b.WriteString("Swap in flight ⏳\n")
	}
	if h != nil {
		if h.Deleted {
			b.WriteString("Deleted ❌\n")
		}
		b.WriteString(fmt.Sprintf("Updated: %s\n", h.LastUpdated.Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatVaultList formats one line per vault.
func FormatVaultList(views []VaultView) string {
	if len(views) == 0 {
		return "No vaults."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>Vaults</b> (%d)\n\n", len(views)))
	for _, v := range views {
		flags := ""
		if v.Snapshot.InFlight {
			flags += " ⏳"
		}
		if h := v.Record.Header(); h != nil && h.Deleted {
			flags += " ❌"
		}
		b.WriteString(fmt.Sprintf("• %s [%s] %d %s%s\n",
			html.EscapeString(v.Record.ID), v.Record.Kind, v.Snapshot.Balance, v.Snapshot.Asset, flags))
	}
	return b.String()
}

// FormatDailySummary formats the keeper's periodic report.
func FormatDailySummary(now time.Time, views []VaultView) string {
	var (
		live, deleted, inFlight int
		perKind                 = make(map[vault.Kind]int)
		perAsset                = make(map[string]uint64)
	)
	for _, v := range views {
		if h := v.Record.Header(); h != nil && h.Deleted {
			deleted++
			continue
		}
		live++
		perKind[v.Record.Kind]++
		perAsset[v.Snapshot.Asset.String()] += v.Snapshot.Balance
		if v.Snapshot.InFlight {
			inFlight++
		}
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Vault summary</b> | %s\n\n", now.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Live: %d | deleted: %d | in flight: %d\n", live, deleted, inFlight))
	for _, k := range []vault.Kind{vault.KindFund, vault.KindDCA, vault.KindSwap} {
		if perKind[k] > 0 {
			b.WriteString(fmt.Sprintf("  %s: %d\n", k, perKind[k]))
		}
	}
	assets := make([]string, 0, len(perAsset))
	for a := range perAsset {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	if len(assets) > 0 {
		b.WriteString("\nHeld:\n")
		for _, a := range assets {
			b.WriteString(fmt.Sprintf("  %s: %d\n", a, perAsset[a]))
		}
	}
	return b.String()
}

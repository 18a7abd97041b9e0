// Package scheduler runs the keeper: a cron-driven counterparty that executes
// DCA slices on their cadence, settles swap-initiator requests and posts
// periodic reports.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/counterparty"
	"StrategyVault/internal/custody"
	"StrategyVault/internal/metrics"
	"StrategyVault/internal/model"
	"StrategyVault/internal/notifier"
	"StrategyVault/internal/recorder"
	"StrategyVault/internal/role"
	"StrategyVault/internal/vault"
)

// Ledger is the host surface the keeper drives as a counterparty wallet.
type Ledger interface {
	Mint(addr model.Address, ref asset.Ref, amount uint64) error
	Transfer(from, to model.Address, ref asset.Ref, amount uint64, note []byte) (asset.Transfer, error)
	IncomingTo(addr model.Address) []asset.Transfer
	ClaimInbound(t asset.Transfer) bool
}

// Sender delivers reports.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Options configure a Keeper. Self is the counterparty address the keeper
// acts as; only vaults naming it as counterparty are serviced.
type Options struct {
	Self      model.Address
	Exchanger counterparty.Exchanger
	Recorder  recorder.Recorder
	Metrics   *metrics.Metrics
	Sender    Sender
	Logger    *zap.Logger
	Now       func() time.Time
}

type dcaEntry struct {
	id       cron.EntryID
	interval uint64
}

// Keeper manages all cron tasks.
type Keeper struct {
	Cron    *cron.Cron
	Manager *custody.Manager
	Ledger  Ledger

	self     model.Address
	exchange counterparty.Exchanger
	rec      recorder.Recorder
	metrics  *metrics.Metrics
	sender   Sender
	log      *zap.Logger
	now      func() time.Time
	ctx      context.Context

	// runMu serializes settlement work: the keeper is a single wallet.
	runMu sync.Mutex

	mu  sync.Mutex
	dca map[string]dcaEntry
}

// NewKeeper creates a Keeper.
func NewKeeper(ctx context.Context, mgr *custody.Manager, ledger Ledger, opts Options) *Keeper {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	clog := cronLogger{opts.Logger.Sugar()}
	return &Keeper{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		Manager:  mgr,
		Ledger:   ledger,
		self:     opts.Self,
		exchange: opts.Exchanger,
		rec:      opts.Recorder,
		metrics:  opts.Metrics,
		sender:   opts.Sender,
		log:      opts.Logger,
		now:      opts.Now,
		ctx:      ctx,
		dca:      make(map[string]dcaEntry),
	}
}

// RegisterAll registers the settle and report tasks and schedules every
// eligible DCA vault.
func (k *Keeper) RegisterAll(settleCron, reportCron string) error {
	if _, err := k.Cron.AddFunc(settleCron, func() { k.Settle() }); err != nil {
		return fmt.Errorf("register settle task: %w", err)
	}
	if _, err := k.Cron.AddFunc(reportCron, func() { k.Report() }); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return k.Sync()
}

// Start starts the cron scheduler.
func (k *Keeper) Start() {
	k.Cron.Start()
	k.log.Info("keeper started", zap.String("address", string(k.self)))
}

// Stop stops the cron scheduler and waits for running jobs.
func (k *Keeper) Stop() {
	<-k.Cron.Stop().Done()
	k.log.Info("keeper stopped")
}

// Sync aligns the per-vault DCA entries with the stored vaults: one
// "@every <interval>s" entry per live DCA vault the keeper is counterparty of.
func (k *Keeper) Sync() error {
	recs, err := k.Manager.ListKind(vault.KindDCA)
	if err != nil {
		return fmt.Errorf("list dca vaults: %w", err)
	}
	want := make(map[string]uint64)
	for _, rec := range recs {
		d := rec.DCA
		if d == nil || d.Deleted || d.Roles.Get(role.Counterparty) != k.self || d.IntervalSeconds == 0 {
			continue
		}
		want[rec.ID] = d.IntervalSeconds
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for id, e := range k.dca {
		if iv, ok := want[id]; !ok || iv != e.interval {
			k.Cron.Remove(e.id)
			delete(k.dca, id)
		}
	}
	for id, iv := range want {
		if _, ok := k.dca[id]; ok {
			continue
		}
		id := id // per-iteration copy; module targets go 1.21 loop semantics
		eid, err := k.Cron.AddFunc(fmt.Sprintf("@every %ds", iv), func() { k.runDCAJob(id) })
		if err != nil {
			return fmt.Errorf("schedule dca %s: %w", id, err)
		}
		k.dca[id] = dcaEntry{id: eid, interval: iv}
		k.log.Info("dca scheduled", zap.String("vault", id), zap.Uint64("interval_seconds", iv))
	}
	return nil
}

// Scheduled returns the interval of every scheduled DCA vault.
func (k *Keeper) Scheduled() map[string]uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[string]uint64, len(k.dca))
	for id, e := range k.dca {
		out[id] = e.interval
	}
	return out
}

// OnEvent re-syncs the DCA schedule after operations that change it.
func (k *Keeper) OnEvent(evt model.Event) {
	if evt.Rejected() || evt.VaultKind != string(vault.KindDCA) {
		return
	}
	switch evt.Op {
	case custody.OpCreate, custody.OpUpdateParams, custody.OpRotateCounterparty, custody.OpDelete:
		if err := k.Sync(); err != nil {
			k.log.Error("dca resync failed", zap.Error(err))
		}
	}
}

func (k *Keeper) runDCAJob(id string) {
	err := k.RunDCA(id)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrInvalidState):
		k.log.Debug("dca slice skipped", zap.String("vault", id), zap.Error(err))
	default:
		k.log.Error("dca slice failed", zap.String("vault", id), zap.Error(err))
	}
}

// RunDCA executes one slice of id: pay out, buy, deliver, credit. A swap left
// in flight by an earlier failure is completed instead of starting a new one.
func (k *Keeper) RunDCA(id string) error {
	k.runMu.Lock()
	defer k.runMu.Unlock()

	rec, err := k.Manager.Get(id)
	if err != nil {
		return err
	}
	d := rec.DCA
	if d == nil {
		return fmt.Errorf("%w: %s is not a dca vault", model.ErrInvalidState, id)
	}
	if d.Deleted || d.Roles.Get(role.Counterparty) != k.self {
		return nil
	}

	paid := d.PendingSwap
	if !d.InFlight {
		if d.Balance == 0 {
			return nil
		}
		paid, err = k.Manager.InitiateTransferForSwap(id, k.self, d.Asset)
		if err != nil {
			k.observe(vault.KindDCA, err)
			return err
		}
		k.recordSwap(&recorder.SwapEvent{
			VaultID: id, VaultKind: string(vault.KindDCA), Leg: "INITIATE", Counterparty: k.self,
			PaidAsset: d.Asset.String(), PaidAmount: paid,
		})
	}

	_, err = k.deliver(rec, d.Address, d.Asset, paid, d.BuyAsset, "", func(proof asset.Transfer, qty uint64) error {
		return k.Manager.ReceivePurchasedAsset(id, k.self, proof, qty)
	})
	return err
}

// Settle completes every in-flight swap-initiator request addressed to the
// keeper and returns how many were settled.
func (k *Keeper) Settle() int {
	k.runMu.Lock()
	defer k.runMu.Unlock()

	payments := k.Ledger.IncomingTo(k.self)
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
	settled := 0
	for _, p := range payments {
		if !p.Asset.IsNative() || len(p.Note) == 0 {
			continue
		}
		req, err := vault.ParseSwapRequest(p.Note)
		if err != nil {
			continue
		}
		rec, err := k.Manager.Get(req.Vault)
		if err != nil || rec.Swap == nil {
			continue
		}
		s := rec.Swap
		if s.Address != p.Sender || !s.InFlight || s.PendingSwap != p.Amount || req.Amount != p.Amount ||
			s.SwapToAsset != req.ToAsset || s.Roles.Get(role.Counterparty) != k.self {
			continue
		}
		// Consume the request first so a payment is never settled twice.
		if !k.Ledger.ClaimInbound(p) {
			continue
		}
		_, err = k.deliver(rec, s.Address, asset.Native, p.Amount, req.ToAsset, string(p.Note), func(proof asset.Transfer, qty uint64) error {
			return k.Manager.ReceiveSwapResult(req.Vault, k.self, proof, qty)
		})
		if err != nil {
			k.log.Error("swap settlement failed, manual settlement required",
				zap.String("vault", req.Vault), zap.String("payment", p.ID), zap.Error(err))
			continue
		}
		settled++
	}
	if settled > 0 {
		k.log.Info("swaps settled", zap.Int("count", settled))
	}
	return settled
}

// deliver buys receive for paid units of pay and hands it to the vault through
// receive, which must verify the delivery.
func (k *Keeper) deliver(rec *vault.Record, to model.Address, pay asset.Ref, paid uint64, receive asset.Ref, note string, credit func(asset.Transfer, uint64) error) (uint64, error) {
	out, err := k.exchange.Quote(pay, paid, receive)
	if err == nil {
		err = k.Ledger.Mint(k.self, receive, out)
	}
	var proof asset.Transfer
	if err == nil {
		proof, err = k.Ledger.Transfer(k.self, to, receive, out, nil)
	}
	if err == nil {
		err = credit(proof, out)
	}
	k.observe(rec.Kind, err)
	if err != nil {
		return 0, fmt.Errorf("deliver %s to %s: %w", receive, rec.ID, err)
	}
	k.recordSwap(&recorder.SwapEvent{
		VaultID: rec.ID, VaultKind: string(rec.Kind), Leg: "SETTLE", Counterparty: k.self,
		PaidAsset: pay.String(), PaidAmount: paid, ReceivedAsset: receive.String(), ReceivedAmt: out, Note: note,
	})
	return out, nil
}

func (k *Keeper) observe(kind vault.Kind, err error) {
	if k.metrics != nil {
		k.metrics.ObserveSwap(string(kind), err)
	}
}

func (k *Keeper) recordSwap(evt *recorder.SwapEvent) {
	evt.At = k.now()
	if err := k.rec.RecordSwap(evt); err != nil {
		k.log.Error("record swap failed", zap.String("vault", evt.VaultID), zap.Error(err))
	}
}

func (k *Keeper) views() ([]notifier.VaultView, error) {
	recs, err := k.Manager.List()
	if err != nil {
		return nil, err
	}
	out := make([]notifier.VaultView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, notifier.VaultView{Record: rec, Snapshot: k.Manager.Snapshot(rec)})
	}
	return out, nil
}

// Report builds the vault summary and sends it when a sender is configured.
func (k *Keeper) Report() string {
	views, err := k.views()
	if err != nil {
		k.log.Error("build report failed", zap.Error(err))
		return ""
	}
	report := notifier.FormatDailySummary(k.now(), views)
	k.trySend(report)
	return report
}

// HandleCommand processes a user command and returns a reply.
func (k *Keeper) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "/vaults":
		views, err := k.views()
		if err != nil {
			return fmt.Sprintf("❌ list vaults: %v", err)
		}
		return notifier.FormatVaultList(views)
	case "/vault":
		if len(fields) < 2 {
			return "usage: /vault &lt;id&gt;"
		}
		rec, err := k.Manager.Get(fields[1])
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatVaultStatus(notifier.VaultView{Record: rec, Snapshot: k.Manager.Snapshot(rec)})
	case "/report":
		views, err := k.views()
		if err != nil {
			return fmt.Sprintf("❌ report: %v", err)
		}
		return notifier.FormatDailySummary(k.now(), views)
	case "/settle":
		return fmt.Sprintf("Settled %d swap(s).", k.Settle())
	default:
		return "Commands:\n• /vaults\n• /vault &lt;id&gt;\n• /report\n• /settle"
	}
}

func (k *Keeper) trySend(text string) {
	if k.sender == nil {
		return
	}
	if err := k.sender.SendWithRetry(k.ctx, text, 3); err != nil {
		k.log.Error("send notification failed", zap.Error(err))
	}
}

// cronLogger adapts zap to cron's logger interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

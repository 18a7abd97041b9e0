// Package custody runs vault operations against the host ledger and the
// vault store. Each operation is serialized per vault, executed inside one
// host transaction and persisted before the transaction commits, so a failure
// anywhere leaves both the vault and the host unchanged.
package custody

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/metrics"
	"StrategyVault/internal/model"
	"StrategyVault/internal/recorder"
	"StrategyVault/internal/store"
	"StrategyVault/internal/vault"
)

// Operation names used in events, history and metrics.
const (
	OpCreate                  = "create"
	OpDeposit                 = "deposit"
	OpDepositReserve          = "deposit_reserve"
	OpWithdraw                = "withdraw"
	OpSweep                   = "sweep"
	OpUpdateParams            = "update_params"
	OpFund                    = "fund"
	OpRemoveFunds             = "remove_funds"
	OpClaimBuyTokens          = "claim_buy_tokens"
	OpInitiateTransferForSwap = "initiate_transfer_for_swap"
	OpReceivePurchasedAsset   = "receive_purchased_asset"
	OpOptInToAsset            = "opt_in_to_asset"
	OpAddReserve              = "add_reserve"
	OpSetSwapParams           = "set_swap_params"
	OpRotateCounterparty      = "rotate_counterparty"
	OpInitiateSwap            = "initiate_swap"
	OpReceiveSwapResult       = "receive_swap_result"
	OpSweepSwappedAsset       = "sweep_swapped_asset"
	OpDelete                  = "delete"
)

// Host is the ledger surface the manager needs: transactional access to the
// asset backends, account allocation and balance reads.
type Host interface {
	asset.BalanceReader
	Atomic(fn func(h asset.Host) error) error
	NewAccount(prefix string) model.Address
}

// Options tune a Manager. Zero values select no-op history, no metrics, a
// no-op logger and the wall clock.
type Options struct {
	FeeHint  uint64
	Recorder recorder.Recorder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Now      func() time.Time
}

// Manager is safe for concurrent use.
type Manager struct {
	host    Host
	store   store.Store
	rec     recorder.Recorder
	metrics *metrics.Metrics
	log     *zap.Logger
	feeHint uint64
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	subsMu sync.RWMutex
	subs   []func(model.Event)
}

// NewManager creates a Manager over host and st.
func NewManager(host Host, st store.Store, opts Options) *Manager {
	m := &Manager{
		host:    host,
		store:   st,
		rec:     opts.Recorder,
		metrics: opts.Metrics,
		log:     opts.Logger,
		feeHint: opts.FeeHint,
		now:     opts.Now,
		locks:   make(map[string]*sync.Mutex),
	}
	if m.rec == nil {
		m.rec = recorder.NewNoopRecorder()
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Subscribe registers fn to receive every event after it is recorded.
func (m *Manager) Subscribe(fn func(model.Event)) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subs = append(m.subs, fn)
}

// Get returns the stored record of id.
func (m *Manager) Get(id string) (*vault.Record, error) {
	return m.store.Get(id)
}

// List returns every stored record.
func (m *Manager) List() ([]*vault.Record, error) {
	return m.store.List()
}

// ListKind returns the stored records of one family.
func (m *Manager) ListKind(kind vault.Kind) ([]*vault.Record, error) {
	return m.store.ListKind(kind)
}

// Snapshot reads the balance view of rec against the live host.
func (m *Manager) Snapshot(rec *vault.Record) vault.Snapshot {
	return rec.Snapshot(m.host)
}

// History returns the most recent events of id, newest first.
func (m *Manager) History(id string, limit int) ([]model.Event, error) {
	return m.rec.RecentEvents(id, limit)
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// opFunc runs one vault operation. It returns the amount actually moved, or
// zero when the operation moves nothing beyond its requested amount.
type opFunc func(rec *vault.Record, c vault.Call, gw *asset.Gateway) (uint64, error)

// exec loads id, runs fn inside one host transaction, persists the result and
// records the outcome.
func (m *Manager) exec(id, op string, caller model.Address, requested uint64, fn opFunc) (uint64, error) {
	evt, moved, err := m.run(id, op, caller, requested, fn)
	m.emit(evt)
	return moved, err
}

func (m *Manager) run(id, op string, caller model.Address, requested uint64, fn opFunc) (*model.Event, uint64, error) {
	unlock := m.lock(id)
	defer unlock()

	c := vault.Call{Caller: caller, Now: m.now()}
	evt := &model.Event{ID: uuid.NewString(), VaultID: id, Op: op, Caller: caller, Amount: requested, At: c.Now}

	rec, err := m.store.Get(id)
	if err != nil {
		return m.reject(evt, err), 0, err
	}
	evt.VaultKind = string(rec.Kind)

	var moved uint64
	var before, after vault.Snapshot
	err = m.host.Atomic(func(h asset.Host) error {
		gw := asset.NewGateway(h, rec.Header().Address, m.feeHint)
		before = rec.Snapshot(h)
		var err error
		if moved, err = fn(rec, c, gw); err != nil {
			return err
		}
		after = rec.Snapshot(h)
		if err := m.store.Put(rec); err != nil {
			return fmt.Errorf("persist vault %s: %w", id, err)
		}
		return nil
	})
	evt.Asset = before.Asset.String()
	evt.BalanceBefore, evt.ReserveBefore = before.Balance, before.Reserve
	if err != nil {
		evt.BalanceAfter, evt.ReserveAfter, evt.InFlight = before.Balance, before.Reserve, before.InFlight
		return m.reject(evt, err), 0, err
	}
	if moved > 0 {
		evt.Amount = moved
	}
	evt.BalanceAfter, evt.ReserveAfter, evt.InFlight = after.Balance, after.Reserve, after.InFlight
	return evt, moved, nil
}

func (m *Manager) reject(evt *model.Event, err error) *model.Event {
	evt.ErrKind = model.Kind(err)
	evt.Error = err.Error()
	return evt
}

func (m *Manager) emit(evt *model.Event) {
	fields := []zap.Field{
		zap.String("vault", evt.VaultID),
		zap.String("op", evt.Op),
		zap.String("caller", string(evt.Caller)),
		zap.Uint64("amount", evt.Amount),
	}
	switch {
	case evt.ErrKind == model.KindInternal:
		m.log.Error("vault operation failed", append(fields, zap.String("error", evt.Error))...)
	case evt.Rejected():
		m.log.Warn("vault operation rejected", append(fields, zap.String("kind", string(evt.ErrKind)), zap.String("error", evt.Error))...)
	default:
		m.log.Info("vault operation", append(fields, zap.Uint64("balance", evt.BalanceAfter))...)
	}

	if err := m.rec.RecordEvent(evt); err != nil {
		m.log.Error("failed to record vault event", zap.String("vault", evt.VaultID), zap.Error(err))
	}
	if m.metrics != nil {
		m.metrics.ObserveEvent(evt)
	}
	m.subsMu.RLock()
	subs := m.subs
	m.subsMu.RUnlock()
	for _, fn := range subs {
		fn(*evt)
	}
}

// create stores a new record and opts its account into refs.
func (m *Manager) create(kind vault.Kind, caller model.Address, id string, build func(id string, addr model.Address, c vault.Call) (*vault.Record, error), refs ...asset.Ref) (*vault.Record, error) {
	if id == "" {
		id = string(kind) + "-" + uuid.NewString()[:8]
	}
	unlock := m.lock(id)
	c := vault.Call{Caller: caller, Now: m.now()}
	evt := &model.Event{ID: uuid.NewString(), VaultID: id, VaultKind: string(kind), Op: OpCreate, Caller: caller, At: c.Now}

	rec, err := m.createLocked(kind, id, c, build, refs)
	if err != nil {
		m.reject(evt, err)
	} else {
		snap := rec.Snapshot(nil)
		evt.Asset = snap.Asset.String()
	}
	unlock()
	m.emit(evt)
	return rec, err
}

func (m *Manager) createLocked(kind vault.Kind, id string, c vault.Call, build func(string, model.Address, vault.Call) (*vault.Record, error), refs []asset.Ref) (*vault.Record, error) {
	if _, err := m.store.Get(id); err == nil {
		return nil, fmt.Errorf("%w: vault %q already exists", model.ErrInvalidParameter, id)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	rec, err := build(id, m.host.NewAccount(string(kind)), c)
	if err != nil {
		return nil, err
	}
	err = m.host.Atomic(func(h asset.Host) error {
		gw := asset.NewGateway(h, rec.Header().Address, m.feeHint)
		for _, ref := range refs {
			if ref.IsNative() {
				continue
			}
			if err := gw.OptIn(ref); err != nil {
				return err
			}
		}
		if err := m.store.Put(rec); err != nil {
			return fmt.Errorf("persist vault %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Package hostledger is an in-process host ledger. It implements the
// primitives the vault engine consumes (verified inbound transfers, native
// payments, token transfers, opt-ins, balances) for devnet use and tests.
package hostledger

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/google/uuid"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/model"
)

var (
	errOverspend   = errors.New("hostledger: insufficient funds")
	errNotOptedIn  = errors.New("hostledger: receiver has not opted in")
	errWrongAsset  = errors.New("hostledger: wrong backend for asset")
	errOverflow    = errors.New("hostledger: balance overflow")
	errZeroAddress = errors.New("hostledger: empty address")
)

type state struct {
	Balances  map[model.Address]map[asset.Ref]uint64 `json:"balances"`
	OptIns    map[model.Address]map[uint64]bool      `json:"opt_ins"`
	Transfers map[string]asset.Transfer              `json:"transfers"`
	Claimed   map[string]bool                        `json:"claimed"`
}

func newState() state {
	return state{
		Balances:  make(map[model.Address]map[asset.Ref]uint64),
		OptIns:    make(map[model.Address]map[uint64]bool),
		Transfers: make(map[string]asset.Transfer),
		Claimed:   make(map[string]bool),
	}
}

func (s *state) normalize() {
	if s.Balances == nil {
		s.Balances = make(map[model.Address]map[asset.Ref]uint64)
	}
	if s.OptIns == nil {
		s.OptIns = make(map[model.Address]map[uint64]bool)
	}
	if s.Transfers == nil {
		s.Transfers = make(map[string]asset.Transfer)
	}
	if s.Claimed == nil {
		s.Claimed = make(map[string]bool)
	}
}

func (s *state) clone() state {
	out := newState()
	for addr, bals := range s.Balances {
		m := make(map[asset.Ref]uint64, len(bals))
		for k, v := range bals {
			m[k] = v
		}
		out.Balances[addr] = m
	}
	for addr, ids := range s.OptIns {
		m := make(map[uint64]bool, len(ids))
		for k, v := range ids {
			m[k] = v
		}
		out.OptIns[addr] = m
	}
	for id, t := range s.Transfers {
		out.Transfers[id] = t
	}
	for id, v := range s.Claimed {
		out.Claimed[id] = v
	}
	return out
}

// Ledger is safe for concurrent use. Every mutation is serialized; Atomic
// groups several into one all-or-nothing transaction.
type Ledger struct {
	mu    sync.Mutex
	st    state
	newID func() string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{st: newState(), newID: uuid.NewString}
}

// Atomic runs fn against the ledger as a single transaction. If fn returns an
// error every change it made is discarded.
func (l *Ledger) Atomic(fn func(h asset.Host) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	saved := l.st.clone()
	if err := fn(&tx{st: &l.st, newID: l.newID}); err != nil {
		l.st = saved
		return err
	}
	return nil
}

func (l *Ledger) do(fn func(t *tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(&tx{st: &l.st, newID: l.newID})
}

// NewAccount allocates a fresh account address.
func (l *Ledger) NewAccount(prefix string) model.Address {
	if prefix == "" {
		prefix = "acct"
	}
	return model.Address(prefix + "-" + l.newID())
}

// Mint credits amount of ref to addr out of thin air. It is the devnet faucet.
func (l *Ledger) Mint(addr model.Address, ref asset.Ref, amount uint64) error {
	return l.do(func(t *tx) error {
		if addr.IsZero() {
			return errZeroAddress
		}
		if !ref.IsNative() {
			t.optIn(addr, ref.TokenID())
		}
		return t.credit(addr, ref, amount)
	})
}

// Transfer executes a transfer signed by from and returns it; the result is
// what a caller later presents as proof.
func (l *Ledger) Transfer(from, to model.Address, ref asset.Ref, amount uint64, note []byte) (asset.Transfer, error) {
	var out asset.Transfer
	err := l.do(func(t *tx) error {
		var err error
		out, err = t.move(asset.Transfer{Asset: ref, Sender: from, Receiver: to, Amount: amount, Note: note})
		return err
	})
	return out, err
}

// Lookup returns an executed transfer by id.
func (l *Ledger) Lookup(id string) (asset.Transfer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.st.Transfers[id]
	return t, ok
}

// IncomingTo lists executed transfers to addr that nobody has claimed yet.
func (l *Ledger) IncomingTo(addr model.Address) []asset.Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []asset.Transfer
	for id, t := range l.st.Transfers {
		if t.Receiver == addr && !l.st.Claimed[id] {
			out = append(out, t)
		}
	}
	return out
}

func (l *Ledger) SendPayment(t asset.Transfer) (asset.Transfer, error) {
	var out asset.Transfer
	err := l.do(func(x *tx) error {
		var err error
		out, err = x.SendPayment(t)
		return err
	})
	return out, err
}

func (l *Ledger) SendAssetTransfer(t asset.Transfer) (asset.Transfer, error) {
	var out asset.Transfer
	err := l.do(func(x *tx) error {
		var err error
		out, err = x.SendAssetTransfer(t)
		return err
	})
	return out, err
}

func (l *Ledger) ClaimInbound(claimed asset.Transfer) bool {
	var ok bool
	_ = l.do(func(x *tx) error {
		ok = x.ClaimInbound(claimed)
		return nil
	})
	return ok
}

func (l *Ledger) BalanceOf(addr model.Address, ref asset.Ref) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.Balances[addr][ref]
}

func (l *Ledger) OptIn(addr model.Address, tokenID uint64) error {
	return l.do(func(x *tx) error { return x.OptIn(addr, tokenID) })
}

// tx applies operations to the ledger state while the caller holds the lock.
type tx struct {
	st    *state
	newID func() string
}

func (t *tx) credit(addr model.Address, ref asset.Ref, amount uint64) error {
	bals := t.st.Balances[addr]
	if bals == nil {
		bals = make(map[asset.Ref]uint64)
		t.st.Balances[addr] = bals
	}
	sum, carry := bits.Add64(bals[ref], amount, 0)
	if carry != 0 {
		return errOverflow
	}
	bals[ref] = sum
	return nil
}

func (t *tx) optIn(addr model.Address, id uint64) {
	ids := t.st.OptIns[addr]
	if ids == nil {
		ids = make(map[uint64]bool)
		t.st.OptIns[addr] = ids
	}
	ids[id] = true
}

func (t *tx) move(tr asset.Transfer) (asset.Transfer, error) {
	if tr.Sender.IsZero() || tr.Receiver.IsZero() {
		return asset.Transfer{}, errZeroAddress
	}
	if !tr.Asset.IsNative() && !t.st.OptIns[tr.Receiver][tr.Asset.TokenID()] {
		return asset.Transfer{}, fmt.Errorf("%w: %s to %s", errNotOptedIn, tr.Asset, tr.Receiver)
	}
	have := t.st.Balances[tr.Sender][tr.Asset]
	if have < tr.Amount {
		return asset.Transfer{}, fmt.Errorf("%w: %s holds %d %s, needs %d", errOverspend, tr.Sender, have, tr.Asset, tr.Amount)
	}
	if tr.Amount > 0 {
		t.st.Balances[tr.Sender][tr.Asset] = have - tr.Amount
		if err := t.credit(tr.Receiver, tr.Asset, tr.Amount); err != nil {
			t.st.Balances[tr.Sender][tr.Asset] = have
			return asset.Transfer{}, err
		}
	}
	tr.ID = t.newID()
	t.st.Transfers[tr.ID] = tr
	return tr, nil
}

func (t *tx) SendPayment(tr asset.Transfer) (asset.Transfer, error) {
	if !tr.Asset.IsNative() {
		return asset.Transfer{}, fmt.Errorf("%w: payment of %s", errWrongAsset, tr.Asset)
	}
	return t.move(tr)
}

func (t *tx) SendAssetTransfer(tr asset.Transfer) (asset.Transfer, error) {
	if tr.Asset.IsNative() {
		return asset.Transfer{}, fmt.Errorf("%w: asset transfer of native currency", errWrongAsset)
	}
	return t.move(tr)
}

func (t *tx) ClaimInbound(claimed asset.Transfer) bool {
	rec, ok := t.st.Transfers[claimed.ID]
	if !ok || t.st.Claimed[claimed.ID] {
		return false
	}
	if rec.Sender != claimed.Sender || rec.Receiver != claimed.Receiver ||
		rec.Amount != claimed.Amount || rec.Asset != claimed.Asset {
		return false
	}
	t.st.Claimed[claimed.ID] = true
	return true
}

func (t *tx) BalanceOf(addr model.Address, ref asset.Ref) uint64 {
	return t.st.Balances[addr][ref]
}

func (t *tx) OptIn(addr model.Address, tokenID uint64) error {
	if addr.IsZero() {
		return errZeroAddress
	}
	if tokenID == 0 {
		return fmt.Errorf("%w: opt-in to native currency", errWrongAsset)
	}
	t.optIn(addr, tokenID)
	return nil
}

package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"StrategyVault/internal/model"
)

// SQLiteRecorder persists vault history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vault_events (
			id             TEXT PRIMARY KEY,
			timestamp      INTEGER NOT NULL,
			vault_id       TEXT NOT NULL,
			vault_kind     TEXT,
			op             TEXT,
			caller         TEXT,
			asset          TEXT,
			amount         INTEGER,
			balance_before INTEGER,
			balance_after  INTEGER,
			reserve_before INTEGER,
			reserve_after  INTEGER,
			in_flight      INTEGER,
			err_kind       TEXT,
			error          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vault_events_vault_ts ON vault_events(vault_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS swap_events (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			vault_id        TEXT NOT NULL,
			vault_kind      TEXT,
			leg             TEXT,
			counterparty    TEXT,
			paid_asset      TEXT,
			paid_amount     INTEGER,
			received_asset  TEXT,
			received_amount INTEGER,
			note            TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_swap_events_ts ON swap_events(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordEvent(evt *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// SQLite integers are signed; amounts are stored as their int64 bit pattern.
	_, err := r.db.Exec(`INSERT INTO vault_events
		(id, timestamp, vault_id, vault_kind, op, caller, asset, amount,
		 balance_before, balance_after, reserve_before, reserve_after,
		 in_flight, err_kind, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		evt.ID, evt.At.UnixNano(), evt.VaultID, evt.VaultKind, evt.Op,
		string(evt.Caller), evt.Asset, int64(evt.Amount),
		int64(evt.BalanceBefore), int64(evt.BalanceAfter),
		int64(evt.ReserveBefore), int64(evt.ReserveAfter),
		evt.InFlight, string(evt.ErrKind), evt.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordSwap(evt *SwapEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := evt.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO swap_events
		(timestamp, vault_id, vault_kind, leg, counterparty, paid_asset, paid_amount,
		 received_asset, received_amount, note)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		at.UnixNano(), evt.VaultID, evt.VaultKind, evt.Leg, string(evt.Counterparty),
		evt.PaidAsset, int64(evt.PaidAmount), evt.ReceivedAsset, int64(evt.ReceivedAmt), evt.Note,
	)
	return err
}

func (r *SQLiteRecorder) RecentEvents(vaultID string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT id, timestamp, vault_id, vault_kind, op, caller, asset, amount,
		balance_before, balance_after, reserve_before, reserve_after, in_flight, err_kind, error
		FROM vault_events WHERE vault_id = ? ORDER BY timestamp DESC LIMIT ?`, vaultID, limit)
	if err != nil {
		return nil, fmt.Errorf("query vault events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var (
			e                         model.Event
			ts                        int64
			caller, errKind           string
			amount, balBefore, balAft int64
			resBefore, resAfter       int64
		)
		if err := rows.Scan(&e.ID, &ts, &e.VaultID, &e.VaultKind, &e.Op, &caller, &e.Asset, &amount,
			&balBefore, &balAft, &resBefore, &resAfter, &e.InFlight, &errKind, &e.Error); err != nil {
			return nil, fmt.Errorf("scan vault event: %w", err)
		}
		e.At = time.Unix(0, ts).UTC()
		e.Caller = model.Address(caller)
		e.ErrKind = model.ErrorKind(errKind)
		e.Amount = uint64(amount)
		e.BalanceBefore, e.BalanceAfter = uint64(balBefore), uint64(balAft)
		e.ReserveBefore, e.ReserveAfter = uint64(resBefore), uint64(resAfter)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}

package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"wavescan/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Journal persists every emitted signal to SQLite for audit and recovery.
type Journal struct {
	db *sql.DB
}

var _ model.SignalJournal = (*Journal)(nil)

// NewJournal opens (or creates) the signal journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			kind        TEXT    NOT NULL,
			token       TEXT    NOT NULL,
			exchange    TEXT    NOT NULL,
			tf          INTEGER NOT NULL,
			price       INTEGER NOT NULL,
			bar_index   INTEGER NOT NULL,
			ts          INTEGER NOT NULL,
			direction   INTEGER NOT NULL,
			take_profit INTEGER,
			stop_loss   INTEGER,
			start_index INTEGER NOT NULL,
			end_index   INTEGER NOT NULL,
			created_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
		CREATE INDEX IF NOT EXISTS idx_signals_instrument ON signals (exchange, token, tf, ts);
	`)
	if err != nil {
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	log.Printf("[journal] opened %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordSignal appends one signal to the journal.
func (j *Journal) RecordSignal(sig model.Signal) error {
	var tp, sl sql.NullInt64
	if sig.TakeProfit != nil {
		tp = sql.NullInt64{Int64: sig.TakeProfit.Price, Valid: true}
	}
	if sig.StopLoss != nil {
		sl = sql.NullInt64{Int64: sig.StopLoss.Price, Valid: true}
	}

	_, err := j.db.Exec(`
		INSERT INTO signals (kind, token, exchange, tf, price, bar_index, ts, direction, take_profit, stop_loss, start_index, end_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(sig.Kind), sig.Token, sig.Exchange, sig.TF, sig.Price, sig.Index, sig.TS.Unix(),
		int(sig.Direction), tp, sl, sig.StartIndex, sig.EndIndex)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Signals returns the most recent signals, newest first.
func (j *Journal) Signals(limit int) ([]model.Signal, error) {
	rows, err := j.db.Query(`
		SELECT kind, token, exchange, tf, price, bar_index, ts, direction, take_profit, stop_loss, start_index, end_index
		FROM signals
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var s model.Signal
		var kind string
		var tsUnix int64
		var dir int
		var tp, sl sql.NullInt64
		if err := rows.Scan(&kind, &s.Token, &s.Exchange, &s.TF, &s.Price, &s.Index, &tsUnix, &dir, &tp, &sl, &s.StartIndex, &s.EndIndex); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		s.Kind = model.SignalKind(kind)
		s.TS = time.Unix(tsUnix, 0).UTC()
		s.Direction = model.Direction(dir)
		if tp.Valid {
			s.TakeProfit = &model.PriceLevel{Price: tp.Int64, Index: s.EndIndex}
		}
		if sl.Valid {
			s.StopLoss = &model.PriceLevel{Price: sl.Int64, Index: s.StartIndex}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

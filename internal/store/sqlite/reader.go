package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"wavescan/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for warmup and backtests.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars reads bars for a given exchange:token and TF opened after afterTS.
// Results are ordered by open time ascending for correct replay order.
func (r *Reader) ReadBars(exchange, token string, tf int, afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT token, exchange, tf, open_ts, close_ts, open, high, low, close, volume
		FROM bars
		WHERE exchange = ? AND token = ? AND tf = ? AND open_ts > ?
		ORDER BY open_ts ASC
	`, exchange, token, tf, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var openTS, closeTS int64
		if err := rows.Scan(&b.Token, &b.Exchange, &b.TF, &openTS, &closeTS, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.OpenTS = time.Unix(openTS, 0).UTC()
		b.CloseTS = time.Unix(closeTS, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}

// FILE: alertlog.go
// Package main – Alert Log: append-only durable store of emitted alerts,
// doubling as the inter-component queue the tail dispatcher scans. Also
// owns the Orders audit table.
//
// Schema and migration style grounded on the Eve-flipper reference's
// internal/db/db.go (schema_version table, sequential migration blocks,
// WAL pragma DSN) and alert_history.go (append/paginated-scan shape).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// AlertLog is a SQLite-backed append-only store of alerts plus an orders
// audit table.
type AlertLog struct {
	db  *sql.DB
	log zerolog.Logger
}

func openAlertLog(path string, log zerolog.Logger) (*AlertLog, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open alert log: %w", err)
	}
	db.SetMaxOpenConns(1)
	al := &AlertLog{db: db, log: component(log, "alert_log")}
	if err := al.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return al, nil
}

func (a *AlertLog) Close() error { return a.db.Close() }

func (a *AlertLog) migrate() error {
	if _, err := a.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}
	var version int
	row := a.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	if err := row.Scan(&version); err == sql.ErrNoRows {
		version = 0
		if _, err := a.db.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if version < 1 {
		if _, err := a.db.Exec(`
			CREATE TABLE IF NOT EXISTS alerts (
				id INTEGER PRIMARY KEY,
				timestamp INTEGER NOT NULL,
				symbol TEXT NOT NULL,
				ratio REAL NOT NULL,
				total_bids INTEGER NOT NULL,
				total_asks INTEGER NOT NULL,
				heavy_venues INTEGER NOT NULL,
				direction TEXT NOT NULL,
				price TEXT NOT NULL
			)`); err != nil {
			return err
		}
		if _, err := a.db.Exec(`
			CREATE TABLE IF NOT EXISTS orders (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				alert_id INTEGER NOT NULL,
				symbol TEXT NOT NULL,
				direction TEXT NOT NULL,
				side TEXT NOT NULL,
				qty INTEGER NOT NULL,
				price TEXT NOT NULL,
				broker_order_id TEXT,
				status_code INTEGER,
				location TEXT,
				error TEXT,
				raw_response TEXT,
				created_at INTEGER NOT NULL
			)`); err != nil {
			return err
		}
		if _, err := a.db.Exec(`UPDATE schema_version SET version = 1`); err != nil {
			return err
		}
		version = 1
	}
	return nil
}

// MaxID returns the current highest alert id, 0 when empty.
func (a *AlertLog) MaxID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := a.db.QueryRowContext(ctx, `SELECT MAX(id) FROM alerts`).Scan(&id)
	if err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

// Append assigns the alert its reserved id (already set by the caller,
// per the detector's MAX(rowid)+1 reservation) and writes it atomically
// visible to readers.
func (a *AlertLog) Append(ctx context.Context, alert Alert) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO alerts (id, timestamp, symbol, ratio, total_bids, total_asks, heavy_venues, direction, price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.Timestamp.UnixNano(), alert.Symbol, alert.Ratio,
		alert.TotalBids, alert.TotalAsks, alert.HeavyVenues, string(alert.Direction), alert.Price.String())
	return err
}

// Scan returns all alerts with id > afterID, ascending.
func (a *AlertLog) Scan(ctx context.Context, afterID int64) ([]Alert, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, timestamp, symbol, ratio, total_bids, total_asks, heavy_venues, direction, price
		FROM alerts WHERE id > ? ORDER BY id ASC`, afterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		var ts int64
		var dir, price string
		if err := rows.Scan(&a.ID, &ts, &a.Symbol, &a.Ratio, &a.TotalBids, &a.TotalAsks, &a.HeavyVenues, &dir, &price); err != nil {
			return nil, err
		}
		a.Timestamp = time.Unix(0, ts)
		a.Direction = Direction(dir)
		a.Price, _ = decimal.NewFromString(price)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AppendOrder records one submission attempt in the orders audit table.
func (a *AlertLog) AppendOrder(ctx context.Context, rec OrderRecord) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO orders (alert_id, symbol, direction, side, qty, price, broker_order_id, status_code, location, error, raw_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AlertID, rec.Symbol, string(rec.Direction), string(rec.Side), rec.Qty, rec.Price.String(),
		rec.BrokerOrderID, rec.StatusCode, rec.Location, rec.Error, rec.RawResponse, rec.CreatedAt.UnixNano())
	return err
}

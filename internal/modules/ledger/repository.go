// Package ledger persists the fill history: every confirmed fill reported by
// the broker adapter, with the realized PnL it settled and the equity after
// settlement. The fill ledger is append-only and lives in its own ledger
// profile database.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

// Entry is one confirmed fill in the ledger
type Entry struct {
	ID          int64               `json:"id"`
	Symbol      string              `json:"symbol"`
	Action      domain.IntentAction `json:"action"`
	Direction   domain.Direction    `json:"direction"`
	Quantity    float64             `json:"quantity"`
	Price       float64             `json:"price"`
	RealizedPnL float64             `json:"realized_pnl"`
	EquityAfter float64             `json:"equity_after"`
	TriggerID   string              `json:"trigger_id"`
	ExecutedAt  time.Time           `json:"executed_at"`
}

// Summary aggregates the fill history
type Summary struct {
	Fills       int64   `json:"fills"`
	Entries     int64   `json:"entries"`
	Reductions  int64   `json:"reductions"`
	Closes      int64   `json:"closes"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// Repository stores fill entries
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// fillColumns avoids SELECT *; order must match scanEntry
const fillColumns = `id, symbol, action, direction, quantity, price, realized_pnl, equity_after, trigger_id, executed_at`

// NewRepository creates a fill ledger repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// InitSchema creates the fills table if missing
func (r *Repository) InitSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS fills (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			action TEXT NOT NULL,
			direction TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			realized_pnl REAL NOT NULL DEFAULT 0,
			equity_after REAL NOT NULL,
			trigger_id TEXT NOT NULL,
			executed_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol, executed_at);
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create fills table: %w", err)
	}
	return nil
}

// RecordFill appends a confirmed fill. Ledger rows are never updated or
// deleted.
func (r *Repository) RecordFill(entry Entry) error {
	if entry.Symbol == "" {
		return fmt.Errorf("fill entry missing symbol")
	}
	executedAt := entry.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO fills
		(symbol, action, direction, quantity, price, realized_pnl, equity_after, trigger_id, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		entry.Symbol,
		string(entry.Action),
		string(entry.Direction),
		entry.Quantity,
		entry.Price,
		entry.RealizedPnL,
		entry.EquityAfter,
		entry.TriggerID,
		executedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record fill for %s: %w", entry.Symbol, err)
	}
	return nil
}

// Recent returns the most recent fills, optionally filtered by symbol
func (r *Repository) Recent(symbol string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT " + fillColumns + " FROM fills"
	args := []interface{}{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY executed_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry             Entry
			action, direction string
			executedAt        int64
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Symbol,
			&action,
			&direction,
			&entry.Quantity,
			&entry.Price,
			&entry.RealizedPnL,
			&entry.EquityAfter,
			&entry.TriggerID,
			&executedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}
		entry.Action = domain.IntentAction(action)
		entry.Direction = domain.Direction(direction)
		entry.ExecutedAt = time.Unix(executedAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fills: %w", err)
	}
	return entries, nil
}

// Summarize aggregates the whole fill history
func (r *Repository) Summarize() (Summary, error) {
	query := `
		SELECT
			COUNT(*),
			SUM(CASE WHEN action = 'OPEN' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'REDUCE' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'CLOSE' THEN 1 ELSE 0 END),
			COALESCE(SUM(realized_pnl), 0)
		FROM fills
	`
	var (
		summary                     Summary
		entries, reductions, closes sql.NullInt64
	)
	err := r.db.QueryRow(query).Scan(
		&summary.Fills,
		&entries,
		&reductions,
		&closes,
		&summary.RealizedPnL,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize fills: %w", err)
	}
	summary.Entries = entries.Int64
	summary.Reductions = reductions.Int64
	summary.Closes = closes.Int64
	return summary, nil
}

// Package audit persists the full arbitration output per cycle per symbol:
// the selected mandate plus every discarded mandate with its reason. The
// trail is the engine's only user-visible explanation surface, and it is the
// input for replay and post-mortem.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

// Repository stores arbitration results in the audit database (ledger
// profile: the trail is immutable and loss here is unacceptable)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// recordColumns avoids SELECT *; order must match scanRecord
const recordColumns = `id, cycle, symbol, selected_type, selected_trigger, forced, discarded, created_at`

// NewRepository creates an audit repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "audit").Logger(),
	}
}

// InitSchema creates the arbitration_results table if missing
func (r *Repository) InitSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS arbitration_results (
			id TEXT PRIMARY KEY,
			cycle INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			selected_type TEXT,
			selected_trigger TEXT,
			forced INTEGER NOT NULL DEFAULT 0,
			discarded BLOB,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_arbitration_cycle ON arbitration_results(cycle);
		CREATE INDEX IF NOT EXISTS idx_arbitration_symbol ON arbitration_results(symbol, cycle);
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create arbitration_results table: %w", err)
	}
	return nil
}

// Insert writes one arbitration result. The discarded list is stored as a
// msgpack blob so the full result can be reconstructed for replay.
func (r *Repository) Insert(result domain.ArbitrationResult) error {
	var (
		selectedType    sql.NullString
		selectedTrigger sql.NullString
		forced          bool
	)
	if result.Selected != nil {
		selectedType = sql.NullString{String: string(result.Selected.Type), Valid: true}
		selectedTrigger = sql.NullString{String: result.Selected.TriggerID, Valid: true}
		forced = result.Selected.Forced
	}

	var blob []byte
	if len(result.Discarded) > 0 {
		var err error
		blob, err = msgpack.Marshal(result.Discarded)
		if err != nil {
			return fmt.Errorf("failed to encode discarded mandates: %w", err)
		}
	}

	query := `
		INSERT INTO arbitration_results
		(id, cycle, symbol, selected_type, selected_trigger, forced, discarded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		uuid.New().String(),
		result.Cycle,
		result.Symbol,
		selectedType,
		selectedTrigger,
		forced,
		blob,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert arbitration result: %w", err)
	}
	return nil
}

// InsertBatch writes a cycle's results in one transaction
func (r *Repository) InsertBatch(results []domain.ArbitrationResult) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO arbitration_results
		(id, cycle, symbol, selected_type, selected_trigger, forced, discarded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare audit insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, result := range results {
		var (
			selectedType    sql.NullString
			selectedTrigger sql.NullString
			forced          bool
		)
		if result.Selected != nil {
			selectedType = sql.NullString{String: string(result.Selected.Type), Valid: true}
			selectedTrigger = sql.NullString{String: result.Selected.TriggerID, Valid: true}
			forced = result.Selected.Forced
		}

		var blob []byte
		if len(result.Discarded) > 0 {
			blob, err = msgpack.Marshal(result.Discarded)
			if err != nil {
				return fmt.Errorf("failed to encode discarded mandates: %w", err)
			}
		}

		if _, err := stmt.Exec(
			uuid.New().String(),
			result.Cycle,
			result.Symbol,
			selectedType,
			selectedTrigger,
			forced,
			blob,
			now,
		); err != nil {
			return fmt.Errorf("failed to insert arbitration result for %s: %w", result.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit batch: %w", err)
	}
	return nil
}

// Record is one persisted arbitration result row
type Record struct {
	ID              string                    `json:"id"`
	Cycle           uint64                    `json:"cycle"`
	Symbol          string                    `json:"symbol"`
	SelectedType    string                    `json:"selected_type,omitempty"`
	SelectedTrigger string                    `json:"selected_trigger,omitempty"`
	Forced          bool                      `json:"forced"`
	Discarded       []domain.DiscardedMandate `json:"discarded,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// NoAction reports whether the recorded cycle selected nothing
func (rec Record) NoAction() bool {
	return rec.SelectedType == ""
}

// ByCycle returns all results recorded for a cycle
func (r *Repository) ByCycle(cycle uint64) ([]Record, error) {
	rows, err := r.db.Query(
		"SELECT "+recordColumns+" FROM arbitration_results WHERE cycle = ? ORDER BY symbol", cycle)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// BySymbol returns the most recent results for a symbol
func (r *Repository) BySymbol(symbol string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		"SELECT "+recordColumns+" FROM arbitration_results WHERE symbol = ? ORDER BY cycle DESC LIMIT ?",
		symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Recent returns the most recent results across all symbols
func (r *Repository) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		"SELECT "+recordColumns+" FROM arbitration_results ORDER BY cycle DESC, symbol LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// PruneOlderThan deletes records created before the cutoff and returns the
// number removed. Called by the scheduled retention job.
func (r *Repository) PruneOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM arbitration_results WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit records: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned audit records: %w", err)
	}
	if removed > 0 {
		r.log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Pruned audit records")
	}
	return removed, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec             Record
			selectedType    sql.NullString
			selectedTrigger sql.NullString
			blob            []byte
			createdAt       int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Cycle,
			&rec.Symbol,
			&selectedType,
			&selectedTrigger,
			&rec.Forced,
			&blob,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.SelectedType = selectedType.String
		rec.SelectedTrigger = selectedTrigger.String
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		if len(blob) > 0 {
			if err := msgpack.Unmarshal(blob, &rec.Discarded); err != nil {
				return nil, fmt.Errorf("failed to decode discarded mandates: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", err)
	}
	return records, nil
}

package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

// PositionRepository persists confirmed position state so the lifecycle
// tracker can recover it after a restart. Only confirmed transitions are
// written; mandate intent never touches storage.
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// positionsColumns avoids SELECT *; order must match scanPosition
const positionsColumns = `symbol, direction, size, entry_price, stop_price, state, risk_reserved, liquidation_distance`

// NewPositionRepository creates a position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// InitSchema creates the positions table if missing
func (r *PositionRepository) InitSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT PRIMARY KEY,
			direction TEXT NOT NULL,
			size REAL NOT NULL,
			entry_price REAL NOT NULL,
			stop_price REAL NOT NULL,
			state TEXT NOT NULL,
			risk_reserved REAL NOT NULL,
			liquidation_distance REAL NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create positions table: %w", err)
	}
	return nil
}

// Save upserts a position snapshot
func (r *PositionRepository) Save(position domain.Position) error {
	if err := position.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid position: %w", err)
	}

	query := `
		INSERT INTO positions
		(symbol, direction, size, entry_price, stop_price, state, risk_reserved, liquidation_distance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			direction = excluded.direction,
			size = excluded.size,
			entry_price = excluded.entry_price,
			stop_price = excluded.stop_price,
			state = excluded.state,
			risk_reserved = excluded.risk_reserved,
			liquidation_distance = excluded.liquidation_distance,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query,
		position.Symbol,
		string(position.Direction),
		position.Size,
		position.EntryPrice,
		position.StopPrice,
		string(position.State),
		position.RiskReserved,
		position.LiquidationDistance,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save position %s: %w", position.Symbol, err)
	}
	return nil
}

// Delete removes a closed position
func (r *PositionRepository) Delete(symbol string) error {
	if _, err := r.db.Exec("DELETE FROM positions WHERE symbol = ?", symbol); err != nil {
		return fmt.Errorf("failed to delete position %s: %w", symbol, err)
	}
	return nil
}

// All returns every persisted position
func (r *PositionRepository) All() ([]domain.Position, error) {
	rows, err := r.db.Query("SELECT " + positionsColumns + " FROM positions ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}
	return positions, nil
}

// GetBySymbol returns one position, or nil when the symbol is flat
func (r *PositionRepository) GetBySymbol(symbol string) (*domain.Position, error) {
	row := r.db.QueryRow("SELECT "+positionsColumns+" FROM positions WHERE symbol = ?", symbol)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (domain.Position, error) {
	var p domain.Position
	var direction, state string
	err := row.Scan(
		&p.Symbol,
		&direction,
		&p.Size,
		&p.EntryPrice,
		&p.StopPrice,
		&state,
		&p.RiskReserved,
		&p.LiquidationDistance,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return p, err
		}
		return p, fmt.Errorf("failed to scan position: %w", err)
	}
	p.Direction = domain.Direction(direction)
	p.State = domain.PositionState(state)
	return p, nil
}

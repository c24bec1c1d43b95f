package storage

// sqlite.go: durable agent state on SQLite (pure Go, no CGo).
//
// Layout:
//   - `agent_state`: exactly one row holding the current snapshot.
//     Nested component state (compound, risk, weights) is stored as JSON;
//     it is only ever read back whole.
//   - `positions`: one row per open or unresolved position.
//   - `cycles`: append-only history of completed compound cycles, kept
//     for reporting after the snapshot has moved on.
//
// Every Save runs in a single transaction, so readers never observe a
// half-written snapshot.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"deltabot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_state (
    id            INTEGER PRIMARY KEY CHECK (id = 1),
    mode          TEXT     NOT NULL,
    pause_reasons TEXT     NOT NULL DEFAULT '',
    balance       REAL     NOT NULL,
    error_count   INTEGER  NOT NULL DEFAULT 0,
    compound      TEXT     NOT NULL,
    risk          TEXT     NOT NULL,
    weights       TEXT     NOT NULL DEFAULT '',
    updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    id             TEXT PRIMARY KEY,
    symbol         TEXT     NOT NULL,
    side           TEXT     NOT NULL,
    entry_price    REAL     NOT NULL,
    size           REAL     NOT NULL,
    stop_loss      REAL     NOT NULL DEFAULT 0,
    take_profit    REAL     NOT NULL DEFAULT 0,
    confidence     REAL     NOT NULL DEFAULT 0,
    strategy       TEXT     NOT NULL DEFAULT '',
    opened_at      DATETIME NOT NULL,
    max_hold_until DATETIME NOT NULL,
    status         TEXT     NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
    number         INTEGER PRIMARY KEY,
    start_balance  REAL     NOT NULL,
    end_balance    REAL     NOT NULL,
    target_balance REAL     NOT NULL,
    gain_amount    REAL     NOT NULL,
    gain_pct       REAL     NOT NULL,
    trades         INTEGER  NOT NULL DEFAULT 0,
    completed_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);
CREATE INDEX IF NOT EXISTS idx_cycles_at        ON cycles(completed_at DESC);
`

// SQLiteStore implements ports.StateStore on SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at the given path and
// applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save replaces the persisted snapshot in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, state domain.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	compoundJSON, err := json.Marshal(state.Compound)
	if err != nil {
		return fmt.Errorf("storage.Save: marshal compound: %w", err)
	}
	riskJSON, err := json.Marshal(state.Risk)
	if err != nil {
		return fmt.Errorf("storage.Save: marshal risk: %w", err)
	}
	weightsJSON := []byte("")
	if state.Weights != nil {
		if weightsJSON, err = json.Marshal(state.Weights); err != nil {
			return fmt.Errorf("storage.Save: marshal weights: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Save: begin tx: %w", err)
	}
	defer tx.Rollback()

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agent_state (id, mode, pause_reasons, balance, error_count, compound, risk, weights, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode          = excluded.mode,
			pause_reasons = excluded.pause_reasons,
			balance       = excluded.balance,
			error_count   = excluded.error_count,
			compound      = excluded.compound,
			risk          = excluded.risk,
			weights       = excluded.weights,
			updated_at    = excluded.updated_at`,
		string(state.Mode), strings.Join(state.PauseReasons, ","), state.Balance,
		state.ErrorCount, string(compoundJSON), string(riskJSON), string(weightsJSON),
		updatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.Save: upsert state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("storage.Save: clear positions: %w", err)
	}
	for _, p := range state.Positions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO positions (id, symbol, side, entry_price, size, stop_loss, take_profit,
			                       confidence, strategy, opened_at, max_hold_until, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Symbol, string(p.Side), p.EntryPrice, p.Size, p.StopLoss, p.TakeProfit,
			p.Confidence, p.Strategy, p.OpenedAt.UTC(), p.MaxHoldUntil.UTC(), string(p.Status),
		)
		if err != nil {
			return fmt.Errorf("storage.Save: insert position %s: %w", p.ID, err)
		}
	}

	for _, c := range state.Compound.Cycles {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO cycles (number, start_balance, end_balance, target_balance,
			                               gain_amount, gain_pct, trades, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Number, c.StartBalance, c.EndBalance, c.TargetBalance,
			c.GainAmount, c.GainPct, c.TradesInCycle, c.CompletedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("storage.Save: insert cycle %d: %w", c.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Save: commit: %w", err)
	}
	return nil
}

// Load returns the last persisted snapshot, or nil when the store is
// empty.
func (s *SQLiteStore) Load(ctx context.Context) (*domain.AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		state        domain.AgentState
		mode         string
		pauseReasons string
		compoundJSON string
		riskJSON     string
		weightsJSON  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT mode, pause_reasons, balance, error_count, compound, risk, weights, updated_at
		FROM agent_state WHERE id = 1`,
	).Scan(&mode, &pauseReasons, &state.Balance, &state.ErrorCount,
		&compoundJSON, &riskJSON, &weightsJSON, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.Load: read state: %w", err)
	}

	state.Mode = domain.AgentMode(mode)
	if pauseReasons != "" {
		state.PauseReasons = strings.Split(pauseReasons, ",")
	}
	if err := json.Unmarshal([]byte(compoundJSON), &state.Compound); err != nil {
		return nil, fmt.Errorf("storage.Load: decode compound: %w", err)
	}
	if err := json.Unmarshal([]byte(riskJSON), &state.Risk); err != nil {
		return nil, fmt.Errorf("storage.Load: decode risk: %w", err)
	}
	if weightsJSON != "" {
		var w domain.StrategyWeights
		if err := json.Unmarshal([]byte(weightsJSON), &w); err != nil {
			return nil, fmt.Errorf("storage.Load: decode weights: %w", err)
		}
		state.Weights = &w
	}

	positions, err := s.loadPositions(ctx)
	if err != nil {
		return nil, err
	}
	state.Positions = positions
	return &state, nil
}

func (s *SQLiteStore) loadPositions(ctx context.Context) ([]domain.TradePosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, entry_price, size, stop_loss, take_profit,
		       confidence, strategy, opened_at, max_hold_until, status
		FROM positions ORDER BY opened_at`)
	if err != nil {
		return nil, fmt.Errorf("storage.Load: read positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.TradePosition
	for rows.Next() {
		var (
			p      domain.TradePosition
			side   string
			status string
		)
		err := rows.Scan(&p.ID, &p.Symbol, &side, &p.EntryPrice, &p.Size,
			&p.StopLoss, &p.TakeProfit, &p.Confidence, &p.Strategy,
			&p.OpenedAt, &p.MaxHoldUntil, &status)
		if err != nil {
			return nil, fmt.Errorf("storage.Load: scan position: %w", err)
		}
		p.Side = domain.Direction(side)
		p.Status = domain.PositionStatus(status)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// CycleHistory returns the most recent completed cycles, newest first.
func (s *SQLiteStore) CycleHistory(ctx context.Context, limit int) ([]domain.CycleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, start_balance, end_balance, target_balance,
		       gain_amount, gain_pct, trades, completed_at
		FROM cycles ORDER BY number DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.CycleHistory: query: %w", err)
	}
	defer rows.Close()

	var cycles []domain.CycleRecord
	for rows.Next() {
		var c domain.CycleRecord
		err := rows.Scan(&c.Number, &c.StartBalance, &c.EndBalance, &c.TargetBalance,
			&c.GainAmount, &c.GainPct, &c.TradesInCycle, &c.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("storage.CycleHistory: scan: %w", err)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Close closes the database cleanly.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

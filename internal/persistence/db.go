// Package persistence provides a SQLite run ledger for the host harness.
// It records run metadata and per-tick host statistics; limiter state itself
// is never stored.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/transit-limiter/internal/config"
	"github.com/talgya/transit-limiter/internal/engine"
)

// Ledger wraps a SQLite connection for run statistics.
type Ledger struct {
	conn *sqlx.DB
}

// Run is one recorded simulation run.
type Run struct {
	ID         string  `db:"id"`
	Seed       int64   `db:"seed"`
	StartedAt  string  `db:"started_at"`
	FinishedAt *string `db:"finished_at"`
	LimitsJSON string  `db:"limits_json"`
	LastTick   uint64  `db:"last_tick"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Ledger, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	l := &Ledger{conn: conn}
	if err := l.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.conn.Close()
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		limits_json TEXT NOT NULL,
		last_tick INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS tick_stats (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		population INTEGER NOT NULL,
		waiting INTEGER NOT NULL,
		over_capacity_stops INTEGER NOT NULL,
		spawned INTEGER NOT NULL,
		boarded INTEGER NOT NULL,
		abandoned INTEGER NOT NULL,
		evicted INTEGER NOT NULL,
		redirected INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE INDEX IF NOT EXISTS idx_tick_stats_evicted ON tick_stats(run_id, evicted);
	`
	_, err := l.conn.Exec(schema)
	return err
}

// StartRun registers a new run and returns its id.
func (l *Ledger) StartRun(seed int64, limits config.Limits) (string, error) {
	limitsJSON, err := json.Marshal(limits)
	if err != nil {
		return "", fmt.Errorf("encode limits: %w", err)
	}

	id := uuid.NewString()
	_, err = l.conn.Exec(
		"INSERT INTO runs (id, seed, started_at, limits_json) VALUES (?, ?, ?, ?)",
		id, seed, time.Now().UTC().Format(time.RFC3339), string(limitsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	slog.Info("run started", "run_id", id, "seed", seed)
	return id, nil
}

// RecordTicks appends tick statistics for a run in one transaction.
func (l *Ledger) RecordTicks(runID string, ticks []engine.TickStats) error {
	if len(ticks) == 0 {
		return nil
	}

	tx, err := l.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO tick_stats
		(run_id, tick, population, waiting, over_capacity_stops,
		 spawned, boarded, abandoned, evicted, redirected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range ticks {
		_, err := stmt.Exec(
			runID, t.Tick, t.Population, t.Waiting, t.OverCapacityStops,
			t.Spawned, t.Boarded, t.Abandoned, t.Evicted, t.Redirected,
		)
		if err != nil {
			return fmt.Errorf("insert tick %d: %w", t.Tick, err)
		}
	}

	last := ticks[len(ticks)-1].Tick
	if _, err := tx.Exec("UPDATE runs SET last_tick = ? WHERE id = ?", last, runID); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	return tx.Commit()
}

// FinishRun stamps the run's finish time.
func (l *Ledger) FinishRun(runID string) error {
	_, err := l.conn.Exec(
		"UPDATE runs SET finished_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), runID,
	)
	return err
}

// GetRun loads a run by id.
func (l *Ledger) GetRun(runID string) (Run, error) {
	var r Run
	err := l.conn.Get(&r, "SELECT id, seed, started_at, finished_at, limits_json, last_tick FROM runs WHERE id = ?", runID)
	return r, err
}

// RecentTicks returns the most recent N ticks of a run, newest first.
func (l *Ledger) RecentTicks(runID string, limit int) ([]engine.TickStats, error) {
	var ticks []engine.TickStats
	err := l.conn.Select(&ticks,
		`SELECT tick, population, waiting, over_capacity_stops, spawned,
		        boarded, abandoned, evicted, redirected
		 FROM tick_stats WHERE run_id = ? ORDER BY tick DESC LIMIT ?`,
		runID, limit,
	)
	return ticks, err
}

// TotalEvicted sums evictions over a run.
func (l *Ledger) TotalEvicted(runID string) (int64, error) {
	var total int64
	err := l.conn.Get(&total, "SELECT COALESCE(SUM(evicted), 0) FROM tick_stats WHERE run_id = ?", runID)
	return total, err
}

package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by Get and Delete for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// Run is a persisted extrapolation result.
type Run struct {
	RunID        string `json:"run_id"`
	Width        int    `json:"width"`
	SurfaceCap   int    `json:"surface_cap"`
	PieceCount   int    `json:"piece_count"`
	ImpulseCount int    `json:"impulse_count"`

	Drops  uint64 `json:"drops"`
	Height uint64 `json:"height"`

	// Loop fields are nil when no loop was applied.
	LoopStartCycle *uint64 `json:"loop_start_cycle,omitempty"`
	LoopPeriod     *uint64 `json:"loop_period,omitempty"`
	LoopGain       *uint64 `json:"loop_gain,omitempty"`

	PrefixCycles    uint64 `json:"prefix_cycles"`
	PeriodsApplied  uint64 `json:"periods_applied"`
	RemainderCycles uint64 `json:"remainder_cycles"`
	TailPieces      int    `json:"tail_pieces"`
	SimulatedCycles int    `json:"simulated_cycles"`
	CacheHits       int    `json:"cache_hits"`

	DurationNanos int64           `json:"duration_nanos"`
	ParamsJSON    json.RawMessage `json:"params_json,omitempty"`
	CreatedAt     int64           `json:"created_at"`
}

// RunCycle is one distinct simulated cycle of a run, in first-seen order.
type RunCycle struct {
	RunID             string `json:"run_id"`
	Seq               int    `json:"seq"`
	FirstSeenCycle    uint64 `json:"first_seen_cycle"`
	HeightAtFirstSeen uint64 `json:"height_at_first_seen"`
	HeightDelta       uint64 `json:"height_delta"`
	EndDriverPhase    int    `json:"end_driver_phase"`
	StartHash         string `json:"start_hash"`
	EndHash           string `json:"end_hash"`
	SurfaceRows       int    `json:"surface_rows"`
	IsLoopStart       bool   `json:"is_loop_start"`
}

// RunStore provides persistence for extrapolation runs and their cycles.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

const runColumns = `run_id, width, surface_cap, piece_count, impulse_count,
	drops, height, periods_applied, loop_start_cycle, loop_period, loop_gain,
	prefix_cycles, remainder_cycles, tail_pieces, simulated_cycles, cache_hits,
	duration_nanos, params_json, created_at`

// Insert persists a run and its cycles in one transaction. If RunID is
// empty, a UUID is generated; cycle rows inherit it.
func (s *RunStore) Insert(run *Run, cycles []RunCycle) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	var paramsStr interface{}
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin insert run: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`INSERT INTO extrapolation_runs (`+runColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Width, run.SurfaceCap, run.PieceCount, run.ImpulseCount,
			formatUint(run.Drops), formatUint(run.Height), formatUint(run.PeriodsApplied),
			nullUint(run.LoopStartCycle), nullUint(run.LoopPeriod), nullUint(run.LoopGain),
			int64(run.PrefixCycles), int64(run.RemainderCycles), run.TailPieces,
			run.SimulatedCycles, run.CacheHits, run.DurationNanos, paramsStr, run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT INTO run_cycles (
			run_id, seq, first_seen_cycle, height_at_first_seen, height_delta,
			end_driver_phase, start_hash, end_hash, surface_rows, is_loop_start
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert cycle: %w", err)
		}
		defer stmt.Close()
		for i := range cycles {
			c := &cycles[i]
			c.RunID = run.RunID
			if _, err := stmt.Exec(
				c.RunID, c.Seq, int64(c.FirstSeenCycle), int64(c.HeightAtFirstSeen), int64(c.HeightDelta),
				c.EndDriverPhase, c.StartHash, c.EndHash, c.SurfaceRows, c.IsLoopStart,
			); err != nil {
				return fmt.Errorf("insert cycle %d: %w", c.Seq, err)
			}
		}
		return tx.Commit()
	})
}

// List returns the most recent runs first. limit <= 0 means no limit.
func (s *RunStore) List(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM extrapolation_runs ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM extrapolation_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return r, err
}

// Cycles returns the cycles of a run in first-seen order.
func (s *RunStore) Cycles(runID string) ([]RunCycle, error) {
	rows, err := s.db.Query(`
		SELECT run_id, seq, first_seen_cycle, height_at_first_seen, height_delta,
		       end_driver_phase, start_hash, end_hash, surface_rows, is_loop_start
		FROM run_cycles
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []RunCycle
	for rows.Next() {
		var c RunCycle
		var first, atFirst, delta int64
		if err := rows.Scan(
			&c.RunID, &c.Seq, &first, &atFirst, &delta,
			&c.EndDriverPhase, &c.StartHash, &c.EndHash, &c.SurfaceRows, &c.IsLoopStart,
		); err != nil {
			return nil, fmt.Errorf("scan cycle row: %w", err)
		}
		c.FirstSeenCycle, c.HeightAtFirstSeen, c.HeightDelta = uint64(first), uint64(atFirst), uint64(delta)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a run and its cycles.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin delete run: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM run_cycles WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete cycles: %w", err)
		}
		result, err := tx.Exec(`DELETE FROM extrapolation_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return tx.Commit()
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRun scans a run row from either *sql.Row or *sql.Rows.
func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var drops, height, periods string
	var loopStart, loopPeriod, loopGain sql.NullInt64
	var prefix, remainder int64
	var paramsStr sql.NullString
	err := row.Scan(
		&r.RunID, &r.Width, &r.SurfaceCap, &r.PieceCount, &r.ImpulseCount,
		&drops, &height, &periods, &loopStart, &loopPeriod, &loopGain,
		&prefix, &remainder, &r.TailPieces, &r.SimulatedCycles, &r.CacheHits,
		&r.DurationNanos, &paramsStr, &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	for _, f := range []struct {
		src string
		dst *uint64
	}{{drops, &r.Drops}, {height, &r.Height}, {periods, &r.PeriodsApplied}} {
		if *f.dst, err = strconv.ParseUint(f.src, 10, 64); err != nil {
			return nil, fmt.Errorf("run %s: parse %q: %w", r.RunID, f.src, err)
		}
	}
	r.LoopStartCycle, r.LoopPeriod, r.LoopGain = uintPtr(loopStart), uintPtr(loopPeriod), uintPtr(loopGain)
	r.PrefixCycles, r.RemainderCycles = uint64(prefix), uint64(remainder)
	if paramsStr.Valid {
		r.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	return &r, nil
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func nullUint(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func uintPtr(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}

// isSQLiteBusy reports whether err is a transient lock error.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn up to five times, doubling a 10ms backoff while it
// keeps failing with a busy error.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 5
	delay := 10 * time.Millisecond
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt < maxAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

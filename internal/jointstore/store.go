// Package jointstore keeps calibration joint values in sqlite. It is the
// mutable joint store behind the calibrated transform interfaces: values
// are read and written by name, and Persist records a durable snapshot of
// every joint.
package jointstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/extrinsic.cal/internal/monitoring"
)

// ErrUnknownJoint is returned by Get for a name the store does not hold.
var ErrUnknownJoint = errors.New("unknown joint")

// Store is a joint store backed by a sqlite database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Snapshot is one persisted copy of every joint value.
type Snapshot struct {
	SnapshotID string             `json:"snapshot_id"`
	CreatedAt  int64              `json:"created_at"`
	Values     map[string]float64 `json:"values"`
}

// Open opens or creates the database at path and migrates it to the latest
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open joint store %s: %w", path, err)
	}
	// A single connection serialises writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	s := &Store{db: db, path: path, now: time.Now}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the values for names in request order.
func (s *Store) Get(ctx context.Context, names []string) ([]float64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query := `SELECT name, value FROM joint_values WHERE name IN (?` +
		strings.Repeat(", ?", len(names)-1) + `)`
	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = n
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query joints: %w", err)
	}
	defer rows.Close()

	found := make(map[string]float64, len(names))
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan joint: %w", err)
		}
		found[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate joints: %w", err)
	}

	values := make([]float64, len(names))
	for i, n := range names {
		v, ok := found[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownJoint, n)
		}
		values[i] = v
	}
	return values, nil
}

// Set writes every value in one transaction.
func (s *Store) Set(ctx context.Context, names []string, values []float64) error {
	if len(names) != len(values) {
		return fmt.Errorf("set joints: %d names but %d values", len(names), len(values))
	}
	return s.upsert(ctx, names, values, `
		INSERT INTO joint_values (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
}

// Seed inserts values for joints the store does not hold yet. Existing
// values are left alone so calibrated joints survive a restart.
func (s *Store) Seed(ctx context.Context, values map[string]float64) error {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	vals := make([]float64, len(names))
	for i, n := range names {
		vals[i] = values[n]
	}
	return s.upsert(ctx, names, vals, `
		INSERT INTO joint_values (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING`)
}

func (s *Store) upsert(ctx context.Context, names []string, values []float64, stmt string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin joint transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			monitoring.Logf("warning: failed to rollback joint transaction: %v", err)
		}
	}()

	now := s.now().UnixNano()
	for i, n := range names {
		if n == "" {
			return fmt.Errorf("set joints: empty joint name at %d", i)
		}
		if _, err := tx.ExecContext(ctx, stmt, n, values[i], now); err != nil {
			return fmt.Errorf("write joint %s: %w", n, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit joints: %w", err)
	}
	return nil
}

// All returns every joint value.
func (s *Store) All(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM joint_values ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query joints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan joint: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

// Persist records a snapshot of every joint value.
func (s *Store) Persist(ctx context.Context) error {
	_, err := s.Snapshot(ctx)
	return err
}

// Snapshot records and returns a snapshot of every joint value.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	values, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	snap := &Snapshot{
		SnapshotID: uuid.New().String(),
		CreatedAt:  s.now().UnixNano(),
		Values:     values,
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO joint_snapshots (snapshot_id, created_at, values_json) VALUES (?, ?, ?)`,
		snap.SnapshotID, snap.CreatedAt, string(data)); err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	monitoring.Logf("jointstore: persisted %d joints as snapshot %s", len(values), snap.SnapshotID)
	return snap, nil
}

// Snapshots returns every snapshot, newest first.
func (s *Store) Snapshots(ctx context.Context) ([]*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, created_at, values_json
		FROM joint_snapshots
		ORDER BY created_at DESC, snapshot_id`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var snap Snapshot
		var valuesJSON string
		if err := rows.Scan(&snap.SnapshotID, &snap.CreatedAt, &valuesJSON); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(valuesJSON), &snap.Values); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", snap.SnapshotID, err)
		}
		out = append(out, &snap)
	}
	return out, rows.Err()
}

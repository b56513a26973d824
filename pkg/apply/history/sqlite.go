package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opensase/upo/pkg/apply"
)

// Config contains configuration for the history store.
type Config struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 5
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default history store configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:         "data/history.db",
		MaxOpenConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Store persists apply reports. Reports are an append-only audit trail of
// what the orchestrator pushed where and what came of it; they are never
// replayed or used for rollback.
type Store struct {
	db     *sql.DB
	config *Config
}

const schema = `
CREATE TABLE IF NOT EXISTS apply_reports (
	id          TEXT PRIMARY KEY,
	policy_name TEXT NOT NULL,
	dry_run     INTEGER NOT NULL,
	success     INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	report      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_apply_reports_started
	ON apply_reports(started_at DESC);

CREATE INDEX IF NOT EXISTS idx_apply_reports_policy
	ON apply_reports(policy_name, started_at DESC);
`

// NewStore opens (creating if needed) the history database.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &Store{db: db, config: config}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save persists one apply report.
func (s *Store) Save(ctx context.Context, report *apply.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO apply_reports (id, policy_name, dry_run, success, started_at, finished_at, report)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.PolicyName,
		boolToInt(report.DryRun),
		boolToInt(report.Success()),
		report.StartedAt,
		report.FinishedAt,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", report.ID, err)
	}
	return nil
}

// Get loads a report by run ID. Returns sql.ErrNoRows when absent.
func (s *Store) Get(ctx context.Context, id string) (*apply.Report, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM apply_reports WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		return nil, err
	}

	var report apply.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &report, nil
}

// ListOptions filters List.
type ListOptions struct {
	// PolicyName, when non-empty, restricts to one policy.
	PolicyName string

	// Limit caps the result count. Default: 50.
	Limit int
}

// List returns reports newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*apply.Report, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if opts.PolicyName != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT report FROM apply_reports
			WHERE policy_name = ?
			ORDER BY started_at DESC LIMIT ?`, opts.PolicyName, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT report FROM apply_reports
			ORDER BY started_at DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*apply.Report
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var report apply.Report
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}

// Prune deletes reports older than the cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM apply_reports WHERE started_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package cache stores compiled configurations keyed by the policy
// fingerprint, so repeated plan and apply runs over an unchanged intent skip
// recompilation. The cache is a pure optimization and is disabled by default;
// a miss or a corrupt entry just means compiling again.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/opensase/upo/pkg/adapters"
)

// Config configures the compiled-config cache.
type Config struct {
	// Path is the SQLite database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// Cache is a fingerprint-keyed store of compiled target configurations.
type Cache struct {
	db *sql.DB

	getStmt   *sql.Stmt
	putStmt   *sql.Stmt
	purgeStmt *sql.Stmt
}

const schema = `
CREATE TABLE IF NOT EXISTS compiled_configs (
	fingerprint TEXT NOT NULL,
	target      TEXT NOT NULL,
	config      TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (fingerprint, target)
);
`

// New opens (creating if needed) the cache database.
func New(cfg Config) (*Cache, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	c := &Cache{db: db}
	if c.getStmt, err = db.Prepare(
		`SELECT config FROM compiled_configs WHERE fingerprint = ? AND target = ?`); err != nil {
		db.Close()
		return nil, err
	}
	if c.putStmt, err = db.Prepare(`
		INSERT INTO compiled_configs (fingerprint, target, config, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (fingerprint, target) DO UPDATE SET
			config = excluded.config, created_at = excluded.created_at`); err != nil {
		db.Close()
		return nil, err
	}
	if c.purgeStmt, err = db.Prepare(
		`DELETE FROM compiled_configs WHERE created_at < ?`); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

// Get returns the cached config for a fingerprint/target pair. The second
// return is false on a miss; a corrupt entry is treated as a miss too, the
// caller recompiles and overwrites it.
func (c *Cache) Get(ctx context.Context, fingerprint, target string) (*adapters.CompiledConfig, bool) {
	var payload string
	err := c.getStmt.QueryRowContext(ctx, fingerprint, target).Scan(&payload)
	if err != nil {
		return nil, false
	}

	var cfg adapters.CompiledConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, false
	}
	return &cfg, true
}

// Put stores a compiled config under its fingerprint.
func (c *Cache) Put(ctx context.Context, cfg *adapters.CompiledConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config for %s: %w", cfg.Target, err)
	}
	_, err = c.putStmt.ExecContext(ctx, cfg.Fingerprint, cfg.Target, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cache config for %s: %w", cfg.Target, err)
	}
	return nil
}

// Purge deletes entries older than the cutoff.
func (c *Cache) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := c.purgeStmt.ExecContext(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Close releases prepared statements and the database handle.
func (c *Cache) Close() error {
	for _, stmt := range []*sql.Stmt{c.getStmt, c.putStmt, c.purgeStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return c.db.Close()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hostdb checks host deletion records in the hub database.
package hostdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/hostkey-reaper/internal/scan"
	"github.com/pdiddy/hostkey-reaper/pkg/types"
)

// confirmQuery selects deletion records for one host key that are older
// than the retention threshold. Placeholders are rewritten per driver by
// rebind. A NULL deleted column means the host is still managed.
const confirmQuery = `SELECT hostkey FROM __hosts WHERE hostkey = ? AND deleted IS NOT NULL AND deleted < ?`

// Store runs read-only deletion-policy checks against the hub database.
type Store struct {
	db        *sql.DB
	driver    string
	retention time.Duration

	// now is stubbed in tests.
	now func() time.Time
}

// Open connects to the hub database described by cfg. The connection is
// verified with a ping so a misconfigured DSN fails at setup rather than
// on the first per-key query.
func Open(ctx context.Context, cfg types.DatabaseConfig) (*Store, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening hub database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to hub database: %w", err)
	}
	return New(db, cfg), nil
}

// New wraps an existing connection. Tests use this with an in-memory
// sqlite database.
func New(db *sql.DB, cfg types.DatabaseConfig) *Store {
	days := cfg.RetentionDays
	if days <= 0 {
		days = types.DefaultRetentionDays
	}
	return &Store{
		db:        db,
		driver:    cfg.Driver,
		retention: time.Duration(days) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ConfirmDeleted reports whether key has a deletion record older than the
// retention window. Confirmation requires an exact match of the returned
// key, not a substring, so a partial digest in the table can never
// confirm a different host.
func (s *Store) ConfirmDeleted(ctx context.Context, key scan.Hostkey) (bool, error) {
	threshold := s.now().Add(-s.retention)

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, confirmQuery), string(key), threshold)
	if err != nil {
		return false, fmt.Errorf("querying deletion record for %s: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var got string
		if err := rows.Scan(&got); err != nil {
			return false, fmt.Errorf("scanning deletion record for %s: %w", key, err)
		}
		if strings.TrimSpace(got) == string(key) {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("reading deletion records for %s: %w", key, err)
	}
	return false, nil
}

// rebind rewrites ? placeholders to the $N style lib/pq expects. sqlite3
// accepts ? natively.
func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

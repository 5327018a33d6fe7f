// Package store persists the latest inferred topology to SQLite so
// other tooling can query the current network state without re-running
// a scan. Each save replaces the previous snapshot.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"toposcope/internal/topology"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database holding the latest topology.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hosts (
		host_id TEXT PRIMARY KEY,
		hostname TEXT NOT NULL,
		interface_count INTEGER NOT NULL,
		data JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS links (
		host_a TEXT NOT NULL,
		interface_a TEXT NOT NULL,
		host_b TEXT NOT NULL,
		interface_b TEXT NOT NULL,
		bidirectional INTEGER NOT NULL,
		discovery_methods TEXT NOT NULL,
		PRIMARY KEY (host_a, interface_a, host_b, interface_b)
	);

	CREATE TABLE IF NOT EXISTS validation_issues (
		host TEXT NOT NULL,
		interface TEXT NOT NULL,
		severity TEXT NOT NULL,
		rule TEXT NOT NULL,
		message TEXT NOT NULL,
		details JSON
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_links_host_a ON links(host_a);
	CREATE INDEX IF NOT EXISTS idx_links_host_b ON links(host_b);
	CREATE INDEX IF NOT EXISTS idx_issues_host ON validation_issues(host);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveTopology replaces the stored snapshot with the given topology and
// validation issues in a single transaction.
func (s *Store) SaveTopology(ctx context.Context, topo *topology.Topology, issues []topology.Issue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"validation_issues", "links", "hosts"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	hostStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hosts (host_id, hostname, interface_count, data)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare host statement: %w", err)
	}
	defer hostStmt.Close()

	for _, hostID := range topo.HostIDs() {
		host := topo.Hosts[hostID]
		data, err := json.Marshal(host)
		if err != nil {
			return fmt.Errorf("failed to marshal host %s: %w", hostID, err)
		}
		if _, err := hostStmt.ExecContext(ctx, hostID, host.Hostname, len(host.Interfaces), data); err != nil {
			return fmt.Errorf("failed to insert host %s: %w", hostID, err)
		}
	}

	linkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO links (host_a, interface_a, host_b, interface_b, bidirectional, discovery_methods)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare link statement: %w", err)
	}
	defer linkStmt.Close()

	for _, link := range topo.Links {
		bidir := 0
		if link.Bidirectional {
			bidir = 1
		}
		if _, err := linkStmt.ExecContext(ctx,
			link.PortA.Host, link.PortA.Interface,
			link.PortB.Host, link.PortB.Interface,
			bidir, strings.Join(link.DiscoveryMethods, ",")); err != nil {
			return fmt.Errorf("failed to insert link %s:%s: %w", link.PortA.Host, link.PortA.Interface, err)
		}
	}

	issueStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO validation_issues (host, interface, severity, rule, message, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare issue statement: %w", err)
	}
	defer issueStmt.Close()

	for _, issue := range issues {
		var details sql.NullString
		if issue.Details != nil {
			raw, err := json.Marshal(issue.Details)
			if err != nil {
				return fmt.Errorf("failed to marshal issue details: %w", err)
			}
			details = sql.NullString{String: string(raw), Valid: true}
		}
		if _, err := issueStmt.ExecContext(ctx,
			issue.Host, issue.Interface, string(issue.Severity),
			issue.Rule, issue.Message, details); err != nil {
			return fmt.Errorf("failed to insert issue for %s:%s: %w", issue.Host, issue.Interface, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES ('last_scan', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to store scan timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LastScan returns the timestamp of the most recent save, or the zero
// time when the store is empty.
func (s *Store) LastScan(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = 'last_scan'`).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query scan timestamp: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse scan timestamp: %w", err)
	}
	return ts, nil
}

// Counts reports the number of stored hosts, links, and issues.
func (s *Store) Counts(ctx context.Context) (hosts, links, issues int, err error) {
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"hosts", &hosts},
		{"links", &links},
		{"validation_issues", &issues},
	} {
		if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table).Scan(q.dst); err != nil {
			return 0, 0, 0, fmt.Errorf("failed to count %s: %w", q.table, err)
		}
	}
	return hosts, links, issues, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/FranksOps/scout/internal/storage"
)

var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

// Timestamps are unix nanoseconds so ordering and range filters are numeric.
const schema = `
CREATE TABLE IF NOT EXISTS discovery_runs (
	id TEXT PRIMARY KEY,
	keywords TEXT NOT NULL,
	unique_domains INTEGER NOT NULL,
	provider_usage TEXT NOT NULL,
	output_path TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	collected_at INTEGER NOT NULL,
	domains TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS discovery_runs_collected_at ON discovery_runs (collected_at);
`

// New opens the SQLite database at dsn and creates the schema.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, run *storage.RunRecord) error {
	keywords, err := json.Marshal(nonNil(run.Keywords))
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	usage, err := json.Marshal(run.ProviderUsage)
	if err != nil {
		return fmt.Errorf("encode usage: %w", err)
	}
	domains, err := json.Marshal(nonNil(run.Domains))
	if err != nil {
		return fmt.Errorf("encode domains: %w", err)
	}

	query := `
	INSERT INTO discovery_runs (
		id, keywords, unique_domains, provider_usage, output_path, started_at, collected_at, domains
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		run.ID,
		string(keywords),
		run.UniqueDomains,
		string(usage),
		run.OutputPath,
		run.StartedAt.UnixNano(),
		run.CollectedAt.UnixNano(),
		string(domains),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	query := `SELECT id, keywords, unique_domains, provider_usage, output_path, started_at, collected_at, domains FROM discovery_runs WHERE 1=1`
	args := []any{}

	if filter.Domain != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(discovery_runs.domains) WHERE json_each.value = ?)`
		args = append(args, filter.Domain)
	}
	if filter.Since != nil {
		query += ` AND collected_at >= ?`
		args = append(args, filter.Since.UnixNano())
	}

	query += ` ORDER BY collected_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var results []*storage.RunRecord
	for rows.Next() {
		var r storage.RunRecord
		var keywords, usage, domains string
		var startedNanos, collectedNanos int64
		err := rows.Scan(&r.ID, &keywords, &r.UniqueDomains, &usage, &r.OutputPath, &startedNanos, &collectedNanos, &domains)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &r.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords: %w", err)
		}
		if err := json.Unmarshal([]byte(usage), &r.ProviderUsage); err != nil {
			return nil, fmt.Errorf("decode usage: %w", err)
		}
		if err := json.Unmarshal([]byte(domains), &r.Domains); err != nil {
			return nil, fmt.Errorf("decode domains: %w", err)
		}
		r.StartedAt = time.Unix(0, startedNanos).UTC()
		r.CollectedAt = time.Unix(0, collectedNanos).UTC()
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

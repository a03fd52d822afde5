package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/scout/internal/storage"
)

var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS discovery_runs (
	id TEXT PRIMARY KEY,
	keywords JSONB NOT NULL,
	unique_domains INTEGER NOT NULL,
	provider_usage JSONB NOT NULL,
	output_path TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL,
	domains JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS discovery_runs_collected_at ON discovery_runs (collected_at);
`

// New connects to dsn and creates the schema.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, run *storage.RunRecord) error {
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
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = b.pool.Exec(ctx, query,
		run.ID,
		keywords,
		run.UniqueDomains,
		usage,
		run.OutputPath,
		run.StartedAt,
		run.CollectedAt,
		domains,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	query := `SELECT id, keywords, unique_domains, provider_usage, output_path, started_at, collected_at, domains FROM discovery_runs WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Domain != "" {
		query += fmt.Sprintf(` AND domains ? $%d`, paramCount)
		args = append(args, filter.Domain)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND collected_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY collected_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var results []*storage.RunRecord
	for rows.Next() {
		var r storage.RunRecord
		var keywords, usage, domains []byte
		err := rows.Scan(&r.ID, &keywords, &r.UniqueDomains, &usage, &r.OutputPath, &r.StartedAt, &r.CollectedAt, &domains)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal(keywords, &r.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords: %w", err)
		}
		if err := json.Unmarshal(usage, &r.ProviderUsage); err != nil {
			return nil, fmt.Errorf("decode usage: %w", err)
		}
		if err := json.Unmarshal(domains, &r.Domains); err != nil {
			return nil, fmt.Errorf("decode domains: %w", err)
		}
		r.StartedAt = r.StartedAt.UTC()
		r.CollectedAt = r.CollectedAt.UTC()
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

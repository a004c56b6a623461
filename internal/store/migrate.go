package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create job_postings table",
		Up: `
			CREATE TABLE IF NOT EXISTS job_postings (
				external_id TEXT PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				employer_name TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				city TEXT NOT NULL DEFAULT '',
				posted_at_ts BIGINT NOT NULL DEFAULT 0,
				data JSONB NOT NULL,
				ingested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				expires_at TIMESTAMPTZ NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_job_postings_expires_at
				ON job_postings (expires_at);
			CREATE INDEX IF NOT EXISTS idx_job_postings_posted_ts
				ON job_postings (posted_at_ts DESC);
		`,
		Down: `DROP TABLE IF EXISTS job_postings`,
	},
	{
		Version:     2,
		Description: "Create query_logs table",
		Up: `
			CREATE TABLE IF NOT EXISTS query_logs (
				query TEXT PRIMARY KEY,
				fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
		`,
		Down: `DROP TABLE IF EXISTS query_logs`,
	},
	{
		Version:     3,
		Description: "Create resumes table",
		Up: `
			CREATE TABLE IF NOT EXISTS resumes (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id TEXT NOT NULL,
				raw_text TEXT NOT NULL DEFAULT '',
				data JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE INDEX IF NOT EXISTS idx_resumes_user_created
				ON resumes (user_id, created_at DESC);
		`,
		Down: `DROP TABLE IF EXISTS resumes`,
	},
}

type Migrator struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewMigrator(pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	return &Migrator{
		pool:   pool,
		logger: logger,
	}
}

// Run applies every pending migration in version order.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}
		if err := m.applyMigration(ctx, migration); err != nil {
			return err
		}
		m.logger.Info("applied migration",
			zap.Int("version", migration.Version),
			zap.String("description", migration.Description))
	}

	return nil
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`

	if _, err := m.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.pool.Query(ctx, "SELECT version, applied_at FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

func (m *Migrator) applyMigration(ctx context.Context, migration Migration) error {
	if _, err := m.pool.Exec(ctx, migration.Up); err != nil {
		return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
	}

	if _, err := m.pool.Exec(ctx,
		"INSERT INTO migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	return nil
}

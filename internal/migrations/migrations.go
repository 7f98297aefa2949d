package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration описывает одно изменение схемы в двух диалектах.
type Migration struct {
	ID        string
	Postgres  string
	SQLiteSQL string
}

var allMigrations = []Migration{
	{
		ID: "020231120120000_create_news_table",
		Postgres: `
		CREATE TABLE news(
		id serial PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		pub_date TIMESTAMPTZ NOT NULL,
		link TEXT UNIQUE NOT NULL
		);`,
		SQLiteSQL: `
		CREATE TABLE news(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		pub_date TIMESTAMP NOT NULL,
		link TEXT UNIQUE NOT NULL
		);`,
	},
	{
		ID: "020240601090000_add_item_source_columns",
		Postgres: `
		ALTER TABLE news ADD COLUMN author TEXT NOT NULL DEFAULT '';
		ALTER TABLE news ADD COLUMN guid TEXT NOT NULL DEFAULT '';
		ALTER TABLE news ADD COLUMN feed TEXT NOT NULL DEFAULT '';
		CREATE INDEX news_pub_date_idx ON news (pub_date DESC);`,
		SQLiteSQL: `
		ALTER TABLE news ADD COLUMN author TEXT NOT NULL DEFAULT '';
		ALTER TABLE news ADD COLUMN guid TEXT NOT NULL DEFAULT '';
		ALTER TABLE news ADD COLUMN feed TEXT NOT NULL DEFAULT '';
		CREATE INDEX news_pub_date_idx ON news (pub_date DESC);`,
	},
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
	id TEXT PRIMARY KEY
	);
	`

// pending возвращает непримененные миграции в порядке идентификаторов.
func pending(applied map[string]bool) []Migration {
	sorted := make([]Migration, len(allMigrations))
	copy(sorted, allMigrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	var out []Migration
	for _, m := range sorted {
		if !applied[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

func logResult(log *slog.Logger, appliedCount int) {
	if appliedCount > 0 {
		log.Info("Database migrations applied successfully", slog.Int("count", appliedCount))
	} else {
		log.Info("Database is up to date, no new migrations found.")
	}
}

// Apply применяет все необходимые миграции к базе данных PostgreSQL.
func Apply(ctx context.Context, log *slog.Logger, pool *pgxpool.Pool) error {
	log = log.With(slog.String("component", "migrations"))
	log.Info("Starting database migrations check...")
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	rows, err := pool.Query(ctx, "SELECT id FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	appliedMigrations := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration id: %w", err)
		}
		appliedMigrations[id] = true
	}
	rows.Close()
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	todo := pending(appliedMigrations)
	for _, m := range todo {
		log.Info("Applying migration", slog.String("id", m.ID))
		if _, err := tx.Exec(ctx, m.Postgres); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (id) VALUES ($1)", m.ID); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migrations transaction: %w", err)
	}
	logResult(log, len(todo))
	return nil
}

// ApplySQLite применяет миграции к базе SQLite.
func ApplySQLite(ctx context.Context, log *slog.Logger, db *sql.DB) error {
	log = log.With(slog.String("component", "migrations"))
	log.Info("Starting database migrations check...")
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	rows, err := db.QueryContext(ctx, "SELECT id FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	appliedMigrations := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration id: %w", err)
		}
		appliedMigrations[id] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	rows.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	todo := pending(appliedMigrations)
	for _, m := range todo {
		log.Info("Applying migration", slog.String("id", m.ID))
		if _, err := tx.ExecContext(ctx, m.SQLiteSQL); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (id) VALUES (?)", m.ID); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations transaction: %w", err)
	}
	logResult(log, len(todo))
	return nil
}

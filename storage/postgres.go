package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"newsfeed/internal/config"
	"newsfeed/internal/domain"
)

const upsertNewsPostgres = `
	INSERT INTO news (title, content, pub_date, link, author, guid, feed)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (link) DO UPDATE SET
		title = EXCLUDED.title,
		pub_date = EXCLUDED.pub_date,
		author = EXCLUDED.author,
		guid = EXCLUDED.guid,
		feed = EXCLUDED.feed;
	`

type PostgresNewsDB struct {
	pool             *pgxpool.Pool
	log              *slog.Logger
	defaultNewsLimit int
}

func NewPostgresNewsDB(pool *pgxpool.Pool, appCfg config.AppConfig, log *slog.Logger) *PostgresNewsDB {
	log = log.With(slog.String("component", "storage"))
	log.Info("Initializing Postgres news storage")
	return &PostgresNewsDB{
		pool:             pool,
		log:              log,
		defaultNewsLimit: appCfg.DefaultNewsLimit,
	}
}

func (db *PostgresNewsDB) Close() {
	db.log.Info("Closing database connection pool")
	db.pool.Close()
}

// SaveNews сохраняет новости ленты одной транзакцией. У новости с уже
// известным адресом обновляются метаданные, сохраненный текст не трогается.
func (db *PostgresNewsDB) SaveNews(ctx context.Context, feed *domain.Feed) (int, error) {
	const op = "storage.postgres.SaveNews"
	if len(feed.Items) == 0 {
		return 0, nil
	}
	log := db.log.With(slog.String("op", op))
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		log.Error("Failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(context.Background()); rollbackErr != nil {
				log.Error("Failed to rollback transaction", slog.Any("error", rollbackErr))
			}
		}
	}()
	batch := &pgx.Batch{}
	for _, item := range feed.Items {
		batch.Queue(
			upsertNewsPostgres,
			item.Title,
			item.Description,
			item.PubDate,
			item.Link,
			item.Author,
			item.GUID,
			item.Feed,
		)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		log.Error("Failed to execute batch", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to execute batch: %w", op, err)
	}
	if err = tx.Commit(ctx); err != nil {
		log.Error("Failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return len(feed.Items), nil
}

// ExistingLinks возвращает те адреса из links, которые уже есть в базе.
func (db *PostgresNewsDB) ExistingLinks(ctx context.Context, links []string) (map[string]bool, error) {
	const op = "storage.postgres.ExistingLinks"
	existing := make(map[string]bool)
	if len(links) == 0 {
		return existing, nil
	}
	rows, err := db.pool.Query(ctx, `SELECT link FROM news WHERE link = ANY($1);`, links)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	for _, link := range found {
		existing[link] = true
	}
	return existing, nil
}

func (db *PostgresNewsDB) GetNews(ctx context.Context, n int) ([]domain.Item, error) {
	const op = "storage.postgres.GetNews"
	limit := n
	if limit <= 0 {
		limit = db.defaultNewsLimit
	}
	log := db.log.With(slog.String("op", op), slog.Int("limit", limit))
	query := `
	SELECT title, content, pub_date, link, author, guid, feed
	FROM news
	ORDER BY pub_date DESC
	LIMIT $1;
	`
	rows, err := db.pool.Query(ctx, query, limit)
	if err != nil {
		log.Error("Database query failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Item, error) {
		var item domain.Item
		err := row.Scan(
			&item.Title,
			&item.Description,
			&item.PubDate,
			&item.Link,
			&item.Author,
			&item.GUID,
			&item.Feed,
		)
		return item, err
	})
	if err != nil {
		log.Error("Failed to collect rows", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	log.Debug("Successfully retrieved news items", slog.Int("count", len(items)))
	return items, nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"newsfeed/internal/config"
	"newsfeed/internal/domain"
	"newsfeed/internal/migrations"
)

const upsertNewsSQLite = `
	INSERT INTO news (title, content, pub_date, link, author, guid, feed)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (link) DO UPDATE SET
		title = excluded.title,
		pub_date = excluded.pub_date,
		author = excluded.author,
		guid = excluded.guid,
		feed = excluded.feed;
	`

// SQLiteNewsDB хранит новости в файле SQLite. Подходит для запуска
// без отдельного сервера БД.
type SQLiteNewsDB struct {
	db               *sql.DB
	log              *slog.Logger
	defaultNewsLimit int
}

// OpenSQLite открывает базу по пути path и применяет миграции.
// ":memory:" создает временную базу в памяти.
func OpenSQLite(ctx context.Context, path string, appCfg config.AppConfig, log *slog.Logger) (*SQLiteNewsDB, error) {
	const op = "storage.sqlite.Open"
	log = log.With(slog.String("component", "storage"))
	log.Info("Initializing SQLite news storage", slog.String("path", path))
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}
	// Одно соединение: запись в SQLite все равно последовательная,
	// а база в памяти живет только внутри соединения.
	db.SetMaxOpenConns(1)
	if err := migrations.ApplySQLite(ctx, log, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &SQLiteNewsDB{
		db:               db,
		log:              log,
		defaultNewsLimit: appCfg.DefaultNewsLimit,
	}, nil
}

func (s *SQLiteNewsDB) Close() {
	s.log.Info("Closing database")
	if err := s.db.Close(); err != nil {
		s.log.Error("Failed to close database", slog.Any("error", err))
	}
}

// SaveNews сохраняет новости ленты одной транзакцией. У существующих
// записей обновляются метаданные, сохраненный текст остается прежним.
func (s *SQLiteNewsDB) SaveNews(ctx context.Context, feed *domain.Feed) (int, error) {
	const op = "storage.sqlite.SaveNews"
	if len(feed.Items) == 0 {
		return 0, nil
	}
	log := s.log.With(slog.String("op", op))
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("Failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, upsertNewsSQLite)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to prepare statement: %w", op, err)
	}
	defer stmt.Close()
	for _, item := range feed.Items {
		if _, err := stmt.ExecContext(ctx,
			item.Title,
			item.Description,
			item.PubDate.UTC(),
			item.Link,
			item.Author,
			item.GUID,
			item.Feed,
		); err != nil {
			log.Error("Failed to save item", slog.String("link", item.Link), slog.Any("error", err))
			return 0, fmt.Errorf("%s: failed to save %s: %w", op, item.Link, err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Error("Failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return len(feed.Items), nil
}

// ExistingLinks возвращает те адреса из links, которые уже есть в базе.
func (s *SQLiteNewsDB) ExistingLinks(ctx context.Context, links []string) (map[string]bool, error) {
	const op = "storage.sqlite.ExistingLinks"
	existing := make(map[string]bool)
	if len(links) == 0 {
		return existing, nil
	}
	args := make([]any, len(links))
	for i, link := range links {
		args[i] = link
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(links)), ",")
	rows, err := s.db.QueryContext(ctx, `SELECT link FROM news WHERE link IN (`+placeholders+`);`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		existing[link] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to read rows: %w", op, err)
	}
	return existing, nil
}

func (s *SQLiteNewsDB) GetNews(ctx context.Context, n int) ([]domain.Item, error) {
	const op = "storage.sqlite.GetNews"
	limit := n
	if limit <= 0 {
		limit = s.defaultNewsLimit
	}
	log := s.log.With(slog.String("op", op), slog.Int("limit", limit))
	rows, err := s.db.QueryContext(ctx, `
	SELECT title, content, pub_date, link, author, guid, feed
	FROM news
	ORDER BY pub_date DESC
	LIMIT ?;
	`, limit)
	if err != nil {
		log.Error("Database query failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()
	items := make([]domain.Item, 0, limit)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(
			&item.Title,
			&item.Description,
			&item.PubDate,
			&item.Link,
			&item.Author,
			&item.GUID,
			&item.Feed,
		); err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to read rows: %w", op, err)
	}
	log.Debug("Successfully retrieved news items", slog.Int("count", len(items)))
	return items, nil
}

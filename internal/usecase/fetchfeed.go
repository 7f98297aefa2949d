package usecase

import (
	"context"
	"io"

	"newsfeed/internal/domain"
)

// FeedFetcher определяет интерфейс для загрузки данных RSS-лент из внешних источников.
// Возвращает io.ReadCloser который должен быть закрыт после использования.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FeedParser определяет интерфейс для парсинга ленты в доменную модель.
type FeedParser interface {
	Parse(ctx context.Context, reader io.Reader) (*domain.Feed, error)
}

// FeedEnhancer дополняет новости ленты полным текстом статей.
// Ошибки загрузки статей не возвращаются: новость остается без изменений.
type FeedEnhancer interface {
	EnhanceAll(ctx context.Context, items []domain.Item, limit int)
}

// FeedStorage определяет интерфейс для сохранения новостей в постоянное хранилище.
// SaveNews возвращает количество сохраненных элементов и ошибку в случае неудачи.
// ExistingLinks отбирает адреса, которые уже сохранены.
type FeedStorage interface {
	SaveNews(ctx context.Context, feed *domain.Feed) (int, error)
	ExistingLinks(ctx context.Context, links []string) (map[string]bool, error)
}

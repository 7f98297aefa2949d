package storage

import (
	"context"

	"newsfeed/internal/domain"
)

// Storage определяет общий интерфейс для работы с хранилищем новостей.
// Объединяет методы для сохранения и получения новостей, а также закрытия соединения.
// SaveNews обновляет метаданные уже сохраненных новостей с тем же адресом,
// но не их содержимое. ExistingLinks сообщает, какие адреса уже сохранены.
type Storage interface {
	SaveNews(ctx context.Context, feed *domain.Feed) (int, error)
	ExistingLinks(ctx context.Context, links []string) (map[string]bool, error)
	GetNews(ctx context.Context, n int) ([]domain.Item, error)
	Close()
}

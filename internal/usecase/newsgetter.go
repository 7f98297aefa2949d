package usecase

import (
	"context"

	"newsfeed/internal/domain"
)

// NewsStorage определяет интерфейс для получения новостей из хранилища.
type NewsStorage interface {
	GetNews(ctx context.Context, n int) ([]domain.Item, error)
}

// NewsGetterUseCase отдает сохраненные новости для API и экспорта лент.
type NewsGetterUseCase struct {
	storage      NewsStorage
	defaultLimit int
}

// NewNewsGetterUseCase создает UseCase получения новостей.
// defaultLimit применяется, когда запрошенный лимит не положителен.
func NewNewsGetterUseCase(s NewsStorage, defaultLimit int) *NewsGetterUseCase {
	return &NewsGetterUseCase{storage: s, defaultLimit: defaultLimit}
}

// GetNews возвращает не более limit последних новостей.
func (us *NewsGetterUseCase) GetNews(ctx context.Context, limit int) ([]domain.Item, error) {
	if limit <= 0 {
		limit = us.defaultLimit
	}
	return us.storage.GetNews(ctx, limit)
}

// DefaultLimit возвращает лимит по умолчанию.
func (us *NewsGetterUseCase) DefaultLimit() int { return us.defaultLimit }

// Package enhancer заменяет краткое содержимое новостей полным текстом
// статьи, загруженным с сайта-источника.
//
// Любая ошибка (нет подходящего правила, сбой загрузки, пустой результат)
// приводит к тому, что новость возвращается без изменений.
package enhancer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"time"

	"newsfeed/internal/domain"
)

const (
	// DefaultMaxRedirects - предел перенаправлений при загрузке статьи.
	DefaultMaxRedirects = 5
	// UserAgent отправляется при загрузке статей.
	UserAgent = "Mozilla/5.0 AppleWebKit"
)

var (
	ErrNotHTML   = errors.New("not an html document")
	ErrEmptyPage = errors.New("empty page")
)

// PageFetcher загружает HTML-страницу статьи.
type PageFetcher interface {
	FetchPage(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error)
}

// Settings предоставляет параметры загрузки из конфигурации приложения.
// Пустой ProxyHost означает работу без прокси.
type Settings interface {
	ProxyHost() string
	ProxyPort() int
	ProxyAuth() string
	FeedFetcherTimeout() time.Duration
}

// ArticleEnhancer обогащает новость, если ее адрес подходит под правила.
type ArticleEnhancer interface {
	Matches(url string) bool
	Enhance(ctx context.Context, item *domain.Item) *domain.Item
}

// newFetchRequest собирает параметры загрузки статьи по текущей конфигурации.
func newFetchRequest(url string, settings Settings) domain.FetchRequest {
	req := domain.FetchRequest{
		URL:          url,
		Timeout:      settings.FeedFetcherTimeout(),
		MaxRedirects: DefaultMaxRedirects,
		UserAgent:    UserAgent,
	}
	if host := settings.ProxyHost(); host != "" {
		req.Proxy = &domain.ProxyConfig{
			Host: host,
			Port: settings.ProxyPort(),
			Auth: settings.ProxyAuth(),
		}
	}
	return req
}

// fetchHTML загружает страницу и возвращает ее тело, если это непустой HTML.
// Сбой загрузки логируется здесь, остальные причины пропуска - на уровне debug.
func fetchHTML(ctx context.Context, fetcher PageFetcher, settings Settings, url string, log *slog.Logger) ([]byte, error) {
	result, err := fetcher.FetchPage(ctx, newFetchRequest(url, settings))
	if err != nil {
		log.Warn("Article fetch failed", slog.Any("error", err))
		return nil, err
	}
	if result == nil || len(result.Body) == 0 {
		log.Debug("Article body is empty")
		return nil, ErrEmptyPage
	}
	if !isHTML(result.ContentType()) {
		log.Debug("Article is not an HTML document", slog.String("content_type", result.ContentType()))
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, result.ContentType())
	}
	return result.Body, nil
}

// isHTML проверяет Content-Type ответа. Отсутствующий заголовок
// не считается ошибкой.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

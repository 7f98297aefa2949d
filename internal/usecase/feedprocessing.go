package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"newsfeed/internal/domain"
)

// saveTimeout ограничивает сохранение ленты. Отсчет идет от конца
// обогащения, а не от начала обработки ленты.
const saveTimeout = 10 * time.Second

// FeedProcessingUseCase реализует обработку лент: загрузку, парсинг,
// обогащение статей и сохранение новостей.
type FeedProcessingUseCase struct {
	fetcher     FeedFetcher
	parser      FeedParser
	enhancer    FeedEnhancer
	storage     FeedStorage
	log         *slog.Logger
	feedNames   map[string]string
	concurrency int
	// enhanceTimeout ограничивает загрузку статей одной ленты; 0 - без
	// отдельного ограничения.
	enhanceTimeout time.Duration
}

// Option настраивает FeedProcessingUseCase.
type Option func(*FeedProcessingUseCase)

// WithEnhancer включает обогащение новостей. concurrency ограничивает
// число одновременно загружаемых статей одной ленты.
func WithEnhancer(e FeedEnhancer, concurrency int) Option {
	return func(uc *FeedProcessingUseCase) {
		uc.enhancer = e
		uc.concurrency = concurrency
	}
}

// WithEnhanceTimeout задает бюджет времени на загрузку статей одной ленты.
// Статьи, не успевшие загрузиться, сохраняются с исходным текстом.
func WithEnhanceTimeout(d time.Duration) Option {
	return func(uc *FeedProcessingUseCase) {
		uc.enhanceTimeout = d
	}
}

// NewFeedProcessingUseCase создает новый экземпляр UseCase для обработки лент.
// Принимает загрузчик, парсер, хранилище, логгер и маппинг URL на имена.
func NewFeedProcessingUseCase(
	fetcher FeedFetcher,
	parser FeedParser,
	storage FeedStorage,
	log *slog.Logger,
	feedNames map[string]string,
	opts ...Option,
) *FeedProcessingUseCase {
	uc := &FeedProcessingUseCase{
		fetcher:   fetcher,
		parser:    parser,
		storage:   storage,
		log:       log,
		feedNames: feedNames,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessFeed выполняет полный цикл обработки ленты.
// Возвращает ошибку при сбое загрузки, парсинга или сохранения;
// неудачное обогащение отдельных статей ошибкой не считается.
func (uc *FeedProcessingUseCase) ProcessFeed(ctx context.Context, feedURL string) error {
	start := time.Now()
	feedName := uc.extractFeedName(feedURL)
	log := uc.log.With(
		slog.String("component", "feed-processor"),
		slog.String("feed", feedName),
		slog.String("url", feedURL),
	)

	log.Info("Processing feed started")

	reader, err := uc.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		log.Error("Feed fetch failed",
			slog.String("stage", "fetch"),
			slog.Any("error", err),
		)
		return fmt.Errorf("fetch failed for %s: %w", feedName, err)
	}
	defer reader.Close()

	feed, err := uc.parser.Parse(ctx, reader)
	if err != nil {
		log.Error("Feed parsing failed",
			slog.String("stage", "parse"),
			slog.Any("error", err),
		)
		return fmt.Errorf("parse failed for %s: %w", feedName, err)
	}

	log.Debug("Feed parsed successfully",
		slog.String("stage", "parse"),
		slog.Int("items_parsed", len(feed.Items)),
	)

	for i := range feed.Items {
		feed.Items[i].Feed = feedName
	}

	if uc.enhancer != nil && len(feed.Items) > 0 {
		uc.enhanceNew(ctx, feed.Items, log)
	}

	// Срок сохранения отсчитывается заново, даже если срок ленты истек.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	savedCount, err := uc.storage.SaveNews(saveCtx, feed)
	if err != nil {
		log.Error("Feed save failed",
			slog.String("stage", "save"),
			slog.Any("error", err),
		)
		return fmt.Errorf("save failed for %s: %w", feedName, err)
	}

	log.Info("Feed processing completed successfully",
		slog.Int("items_found", len(feed.Items)),
		slog.Int("items_saved", savedCount),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

// enhanceNew обогащает только новости, которых еще нет в хранилище:
// сохраненный ранее полный текст не загружается повторно.
func (uc *FeedProcessingUseCase) enhanceNew(ctx context.Context, items []domain.Item, log *slog.Logger) {
	start := time.Now()
	links := make([]string, len(items))
	for i := range items {
		links[i] = items[i].Link
	}
	existing, err := uc.storage.ExistingLinks(ctx, links)
	if err != nil {
		log.Warn("Failed to look up stored items, enhancing all",
			slog.String("stage", "enhance"),
			slog.Any("error", err),
		)
		existing = nil
	}

	fresh := make([]domain.Item, 0, len(items))
	index := make([]int, 0, len(items))
	for i := range items {
		if existing[items[i].Link] {
			continue
		}
		fresh = append(fresh, items[i])
		index = append(index, i)
	}
	if len(fresh) > 0 {
		enhanceCtx := ctx
		if uc.enhanceTimeout > 0 {
			var cancel context.CancelFunc
			enhanceCtx, cancel = context.WithTimeout(ctx, uc.enhanceTimeout)
			defer cancel()
		}
		uc.enhancer.EnhanceAll(enhanceCtx, fresh, uc.concurrency)
		for j, i := range index {
			items[i] = fresh[j]
		}
	}

	log.Debug("Feed items enhanced",
		slog.String("stage", "enhance"),
		slog.Int("items_new", len(fresh)),
		slog.Int("items_known", len(items)-len(fresh)),
		slog.Duration("duration", time.Since(start)),
	)
}

// extractFeedName возвращает имя ленты из конфигурации,
// а если его нет - домен без "www.".
func (uc *FeedProcessingUseCase) extractFeedName(feedURL string) string {
	if name, ok := uc.feedNames[feedURL]; ok {
		return name
	}
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return "Unknown"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

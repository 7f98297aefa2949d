package enhancer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"

	readability "github.com/go-shiori/go-readability"

	"newsfeed/internal/domain"
)

// ReadabilityEnhancer заменяет содержимое новости основным текстом статьи,
// найденным эвристиками readability. Используется для сайтов, для которых
// нет отдельного XPath-правила.
type ReadabilityEnhancer struct {
	fetcher  PageFetcher
	patterns []*regexp.Regexp
	settings Settings
	log      *slog.Logger
}

// NewReadabilityEnhancer компилирует шаблоны адресов.
func NewReadabilityEnhancer(fetcher PageFetcher, patterns []string, settings Settings, log *slog.Logger) (*ReadabilityEnhancer, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid readability pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &ReadabilityEnhancer{
		fetcher:  fetcher,
		patterns: compiled,
		settings: settings,
		log:      log.With(slog.String("component", "readability-enhancer")),
	}, nil
}

func (e *ReadabilityEnhancer) Matches(url string) bool {
	for _, re := range e.patterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// Enhance работает так же, как XPathEnhancer.Enhance, но содержимое
// выбирается readability.
func (e *ReadabilityEnhancer) Enhance(ctx context.Context, item *domain.Item) *domain.Item {
	if !e.Matches(item.URL()) {
		return item
	}
	log := e.log.With(slog.String("url", item.URL()))
	body, err := fetchHTML(ctx, e.fetcher, e.settings, item.URL(), log)
	if err != nil {
		return item
	}
	pageURL, err := url.Parse(item.URL())
	if err != nil {
		return item
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		log.Warn("Readability extraction failed", slog.Any("error", err))
		return item
	}
	content := rewriteHTML(article.Content, item.URL())
	if content == "" {
		log.Debug("Readability found no content")
		return item
	}
	item.SetBody(content)
	return item
}

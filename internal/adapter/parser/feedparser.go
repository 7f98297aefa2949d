package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"newsfeed/internal/domain"
)

// FeedParser разбирает ленты RSS, Atom и JSON Feed в доменную модель.
type FeedParser struct {
	log *slog.Logger
}

func NewFeedParser(log *slog.Logger) *FeedParser {
	return &FeedParser{
		log: log.With(slog.String("component", "parser")),
	}
}

// Parse реализует метод интерфейса usecase.FeedParser.
func (p *FeedParser) Parse(ctx context.Context, reader io.Reader) (*domain.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsed, err := gofeed.NewParser().Parse(reader)
	if err != nil {
		p.log.Error("Error decoding feed", slog.Any("error", err))
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	feed := domain.Feed{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Items:       make([]domain.Item, 0, len(parsed.Items)),
	}
	for _, it := range parsed.Items {
		pubDate, ok := itemDate(it)
		if !ok {
			p.log.Warn("could not parse item date, skipping item",
				slog.String("published", it.Published),
				slog.String("item_title", it.Title),
			)
			continue
		}
		feed.Items = append(feed.Items, domain.Item{
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Description: itemBody(it),
			Author:      itemAuthor(it),
			GUID:        it.GUID,
			PubDate:     pubDate,
		})
	}
	return &feed, nil
}

// itemDate возвращает дату публикации, а при ее отсутствии - дату обновления.
func itemDate(it *gofeed.Item) (time.Time, bool) {
	if it.PublishedParsed != nil {
		return *it.PublishedParsed, true
	}
	if it.UpdatedParsed != nil {
		return *it.UpdatedParsed, true
	}
	return time.Time{}, false
}

// itemBody предпочитает полное содержимое краткому описанию.
func itemBody(it *gofeed.Item) string {
	if strings.TrimSpace(it.Content) != "" {
		return it.Content
	}
	return it.Description
}

func itemAuthor(it *gofeed.Item) string {
	if it.Author != nil {
		return it.Author.Name
	}
	if len(it.Authors) > 0 && it.Authors[0] != nil {
		return it.Authors[0].Name
	}
	return ""
}

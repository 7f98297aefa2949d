package enhancer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"newsfeed/internal/domain"
)

// Chain применяет к новости первый обработчик, подходящий по адресу.
type Chain struct {
	enhancers []ArticleEnhancer
}

func NewChain(enhancers ...ArticleEnhancer) *Chain {
	return &Chain{enhancers: enhancers}
}

func (c *Chain) Matches(url string) bool {
	for _, e := range c.enhancers {
		if e.Matches(url) {
			return true
		}
	}
	return false
}

func (c *Chain) Enhance(ctx context.Context, item *domain.Item) *domain.Item {
	for _, e := range c.enhancers {
		if e.Matches(item.URL()) {
			return e.Enhance(ctx, item)
		}
	}
	return item
}

// EnhanceAll обогащает новости на месте, выполняя не более limit
// загрузок одновременно. limit <= 0 снимает ограничение.
func (c *Chain) EnhanceAll(ctx context.Context, items []domain.Item, limit int) {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := range items {
		item := &items[i]
		if !c.Matches(item.URL()) {
			continue
		}
		g.Go(func() error {
			c.Enhance(gctx, item)
			return nil
		})
	}
	_ = g.Wait()
}

package enhancer

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"newsfeed/internal/domain"
)

// XPathEnhancer заменяет содержимое новости фрагментами страницы статьи,
// выбранными XPath-выражением первого подходящего правила.
type XPathEnhancer struct {
	fetcher  PageFetcher
	rules    *RuleTable
	settings Settings
	log      *slog.Logger
}

// NewXPathEnhancer создает обработчик с заданными правилами.
// Обработчик не хранит состояния между вызовами и безопасен для
// параллельного использования, если таков fetcher: каждый вызов
// компилирует свое XPath-выражение.
func NewXPathEnhancer(fetcher PageFetcher, rules *RuleTable, settings Settings, log *slog.Logger) *XPathEnhancer {
	return &XPathEnhancer{
		fetcher:  fetcher,
		rules:    rules,
		settings: settings,
		log:      log.With(slog.String("component", "xpath-enhancer")),
	}
}

// Matches сообщает, есть ли правило для адреса.
func (e *XPathEnhancer) Matches(url string) bool {
	_, ok := e.rules.Match(url)
	return ok
}

// Enhance загружает статью и заменяет содержимое item выбранными
// фрагментами. Без подходящего правила страница не загружается.
// При любой ошибке item возвращается без изменений.
func (e *XPathEnhancer) Enhance(ctx context.Context, item *domain.Item) *domain.Item {
	rule, ok := e.rules.Match(item.URL())
	if !ok {
		return item
	}
	log := e.log.With(
		slog.String("url", item.URL()),
		slog.String("selector", rule.Selector),
	)
	body, err := fetchHTML(ctx, e.fetcher, e.settings, item.URL(), log)
	if err != nil {
		return item
	}
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		log.Warn("Failed to parse article HTML", slog.Any("error", err))
		return item
	}
	expr, err := xpath.Compile(rule.Selector)
	if err != nil {
		log.Warn("Failed to compile selector", slog.Any("error", err))
		return item
	}
	content := extract(doc, expr, item.URL())
	if content == "" {
		log.Debug("Selector matched no content")
		return item
	}
	item.SetBody(content)
	log.Debug("Article enhanced", slog.Int("length", len(content)))
	return item
}

// extract вычисляет выражение над документом и сериализует результат.
// expr не должен использоваться другими горутинами во время вызова.
// Числовые и логические результаты игнорируются.
// Узлы собираются заранее, потому что переписывание ссылок меняет дерево.
func extract(doc *html.Node, expr *xpath.Expr, baseURL string) (content string) {
	defer func() {
		if r := recover(); r != nil {
			content = ""
		}
	}()
	var b strings.Builder
	switch v := expr.Evaluate(htmlquery.CreateXPathNavigator(doc)).(type) {
	case *xpath.NodeIterator:
		type part struct {
			node *html.Node
			text string
		}
		var parts []part
		for v.MoveNext() {
			nav, ok := v.Current().(*htmlquery.NodeNavigator)
			if !ok {
				continue
			}
			if nav.NodeType() == xpath.AttributeNode {
				parts = append(parts, part{text: html.EscapeString(nav.Value())})
				continue
			}
			parts = append(parts, part{node: nav.Current()})
		}
		for _, p := range parts {
			if p.node == nil {
				b.WriteString(p.text)
				continue
			}
			writeFragment(&b, p.node, baseURL)
		}
	case string:
		b.WriteString(html.EscapeString(v))
	}
	return strings.TrimSpace(b.String())
}

package enhancer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"newsfeed/internal/domain"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Test Article</title></head>
<body>
<nav><a href="/">Home</a></nav>
<article>
<h1>Test Article</h1>
<p>This is a test article with meaningful content that should be extracted by the readability parser. It contains enough text to be considered article content.</p>
<p>The readability library needs a reasonable amount of content to identify the main article body. This second paragraph adds more substance to the article and links to <a href="/docs/intro">the introduction</a>.</p>
<p>Adding a third paragraph ensures the content is substantial enough for extraction. The library uses heuristics to find the main content area of a page.</p>
</article>
</body>
</html>`

func TestChain_FirstMatchingEnhancerWins(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fetcher := &mockFetcher{}
	xp := NewXPathEnhancer(fetcher, testRules(t), noProxySettings(), logger)
	rd, err := NewReadabilityEnhancer(fetcher, []string{`explosm\.net`}, noProxySettings(), logger)
	require.NoError(t, err)
	chain := NewChain(xp, rd)

	item := newItem("https://www.explosm.net/comics/312")
	fetcher.On("FetchPage", expectedRequest(item.Link)).Return(htmlPage(
		`<div id="maincontent"><div>nooo</div><div><div><span>hiho</span></div></div></div>`), nil).Once()

	result := chain.Enhance(context.Background(), item)

	assert.Equal(t, "<span>hiho</span>", result.Body())
	fetcher.AssertNumberOfCalls(t, "FetchPage", 1)
}

func TestChain_NoMatchDoesNotFetch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fetcher := &mockFetcher{}
	chain := NewChain(NewXPathEnhancer(fetcher, testRules(t), noProxySettings(), logger))
	item := newItem("https://example.org/post")

	result := chain.Enhance(context.Background(), item)

	assert.Equal(t, "Hello thar", result.Body())
	assert.False(t, chain.Matches(item.Link))
	fetcher.AssertNotCalled(t, "FetchPage", mock.Anything)
}

func TestChain_EnhanceAll(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fetcher := &mockFetcher{}
	chain := NewChain(NewXPathEnhancer(fetcher, testRules(t), noProxySettings(), logger))
	items := []domain.Item{
		{Link: "https://www.explosm.net/comics/1", Description: "one"},
		{Link: "https://example.org/2", Description: "two"},
		{Link: "https://www.explosm.net/comics/3", Description: "three"},
	}
	page := htmlPage(`<div id="maincontent"><div>nooo</div><div><div><span>hiho</span></div></div></div>`)
	fetcher.On("FetchPage", expectedRequest(items[0].Link)).Return(page, nil).Once()
	fetcher.On("FetchPage", expectedRequest(items[2].Link)).Return(page, nil).Once()

	chain.EnhanceAll(context.Background(), items, 2)

	assert.Equal(t, "<span>hiho</span>", items[0].Description)
	assert.Equal(t, "two", items[1].Description)
	assert.Equal(t, "<span>hiho</span>", items[2].Description)
	fetcher.AssertExpectations(t)
}

func TestReadabilityEnhancer_Enhance(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fetcher := &mockFetcher{}
	e, err := NewReadabilityEnhancer(fetcher, []string{`example\.com/blog`}, noProxySettings(), logger)
	require.NoError(t, err)
	item := newItem("https://example.com/blog/post")
	fetcher.On("FetchPage", expectedRequest(item.Link)).Return(htmlPage(articleHTML), nil).Once()

	result := e.Enhance(context.Background(), item)

	assert.Contains(t, result.Body(), "meaningful content")
	assert.Contains(t, result.Body(), `href="https://example.com/docs/intro"`)
	assert.Contains(t, result.Body(), `target="_blank"`)
	fetcher.AssertExpectations(t)
}

func TestReadabilityEnhancer_InvalidPattern(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewReadabilityEnhancer(&mockFetcher{}, []string{`(`}, noProxySettings(), logger)

	assert.Error(t, err)
}

func TestReadabilityEnhancer_FetchErrorKeepsBody(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fetcher := &mockFetcher{}
	e, err := NewReadabilityEnhancer(fetcher, []string{`example\.com`}, noProxySettings(), logger)
	require.NoError(t, err)
	item := newItem("https://example.com/post")
	fetcher.On("FetchPage", expectedRequest(item.Link)).Return(nil, assert.AnError).Once()

	result := e.Enhance(context.Background(), item)

	assert.Equal(t, "Hello thar", result.Body())
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"newsfeed/internal/domain"
)

type mockGetter struct{ mock.Mock }

func (m *mockGetter) GetNews(ctx context.Context, limit int) ([]domain.Item, error) {
	args := m.Called(ctx, limit)
	items, _ := args.Get(0).([]domain.Item)
	return items, args.Error(1)
}

func testItems() []domain.Item {
	return []domain.Item{{
		Title:       "Comic",
		Link:        "https://explosm.net/comics/1",
		Description: `<img src="https://explosm.net/a.png"/>`,
		Author:      "Rob",
		GUID:        "comic-1",
		Feed:        "Explosm",
		PubDate:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}}
}

func newTestServer(getter newsGetter) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(log, getter, FeedInfo{Title: "News", Link: "http://localhost:8080", Description: "Aggregated"})
	return NewServer(log, h)
}

func TestGetNews_DefaultLimit(t *testing.T) {
	getter := new(mockGetter)
	getter.On("GetNews", mock.Anything, 0).Return(testItems(), nil)
	srv := newTestServer(getter)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got []domain.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Comic", got[0].Title)
	assert.Equal(t, "Explosm", got[0].Feed)
	getter.AssertExpectations(t)
}

func TestGetNews_Limit(t *testing.T) {
	getter := new(mockGetter)
	getter.On("GetNews", mock.Anything, 5).Return([]domain.Item{}, nil)
	srv := newTestServer(getter)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news?limit=5", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	getter.AssertExpectations(t)
}

func TestGetNews_InvalidLimit(t *testing.T) {
	for _, limit := range []string{"abc", "0", "-3"} {
		t.Run(limit, func(t *testing.T) {
			getter := new(mockGetter)
			srv := newTestServer(getter)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news?limit="+limit, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Invalid 'limit' parameter"}`, rec.Body.String())
			getter.AssertNotCalled(t, "GetNews", mock.Anything, mock.Anything)
		})
	}
}

func TestGetNews_StorageError(t *testing.T) {
	getter := new(mockGetter)
	getter.On("GetNews", mock.Anything, 0).Return(nil, errors.New("db down"))
	srv := newTestServer(getter)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetNews_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(new(mockGetter))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/news", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetRSS(t *testing.T) {
	getter := new(mockGetter)
	getter.On("GetNews", mock.Anything, 0).Return(testItems(), nil)
	srv := newTestServer(getter)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news.rss", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<rss")
	assert.Contains(t, body, "<title>News</title>")
	assert.Contains(t, body, "https://explosm.net/comics/1")
	assert.Contains(t, body, "comic-1")
}

func TestGetAtom(t *testing.T) {
	getter := new(mockGetter)
	getter.On("GetNews", mock.Anything, 2).Return(testItems(), nil)
	srv := newTestServer(getter)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news.atom?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/atom+xml; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `<feed xmlns="http://www.w3.org/2005/Atom">`)
	assert.Contains(t, body, "<name>Rob</name>")
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(new(mockGetter))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(new(mockGetter))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestCORS(t *testing.T) {
	srv := newTestServer(new(mockGetter))

	req := httptest.NewRequest(http.MethodOptions, "/api/news", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

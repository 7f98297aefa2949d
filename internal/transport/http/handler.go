package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/feeds"

	"newsfeed/internal/domain"
)

type newsGetter interface {
	GetNews(ctx context.Context, limit int) ([]domain.Item, error)
}

// FeedInfo описывает ленту, в которой публикуются сохраненные новости.
type FeedInfo struct {
	Title       string
	Link        string
	Description string
}

type Handler struct {
	log        *slog.Logger
	newsGetter newsGetter
	info       FeedInfo
}

func NewHandler(log *slog.Logger, getter newsGetter, info FeedInfo) *Handler {
	return &Handler{
		log:        log,
		newsGetter: getter,
		info:       info,
	}
}

// getNews - хендлер для эндпоинта GET /api/news
func (h *Handler) getNews(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/getNews"
	log := h.requestLog(r, op)
	limit, ok := parseLimit(r)
	if !ok {
		log.Warn("invalid limit parameter", slog.String("limit", r.URL.Query().Get("limit")))
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	news, err := h.newsGetter.GetNews(r.Context(), limit)
	if err != nil {
		log.Error("Failed to get news", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	respondWithJSON(w, http.StatusOK, news)
}

// getRSS - хендлер для эндпоинта GET /api/news.rss
func (h *Handler) getRSS(w http.ResponseWriter, r *http.Request) {
	h.writeFeed(w, r, "transport.http/getRSS", "application/rss+xml; charset=utf-8", (*feeds.Feed).ToRss)
}

// getAtom - хендлер для эндпоинта GET /api/news.atom
func (h *Handler) getAtom(w http.ResponseWriter, r *http.Request) {
	h.writeFeed(w, r, "transport.http/getAtom", "application/atom+xml; charset=utf-8", (*feeds.Feed).ToAtom)
}

func (h *Handler) writeFeed(w http.ResponseWriter, r *http.Request, op, contentType string, render func(*feeds.Feed) (string, error)) {
	log := h.requestLog(r, op)
	limit, ok := parseLimit(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}
	news, err := h.newsGetter.GetNews(r.Context(), limit)
	if err != nil {
		log.Error("Failed to get news", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	body, err := render(h.buildFeed(news))
	if err != nil {
		log.Error("Failed to render feed", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// buildFeed собирает ленту из новостей; дата ленты - дата самой свежей новости.
func (h *Handler) buildFeed(news []domain.Item) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       h.info.Title,
		Link:        &feeds.Link{Href: h.info.Link},
		Description: h.info.Description,
		Items:       make([]*feeds.Item, 0, len(news)),
	}
	for _, item := range news {
		if item.PubDate.After(feed.Updated) {
			feed.Updated = item.PubDate
		}
		id := item.GUID
		if id == "" {
			id = item.Link
		}
		fi := &feeds.Item{
			Title:       item.Title,
			Link:        &feeds.Link{Href: item.Link},
			Description: item.Description,
			Content:     item.Description,
			Id:          id,
			Created:     item.PubDate,
		}
		if item.Author != "" {
			fi.Author = &feeds.Author{Name: item.Author}
		}
		feed.Items = append(feed.Items, fi)
	}
	if feed.Updated.IsZero() {
		feed.Updated = time.Now()
	}
	return feed
}

// healthCheck - хендлер для проверки состояния сервиса
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLog(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)
}

// parseLimit читает параметр limit. Отсутствие параметра дает 0,
// то есть лимит по умолчанию.
func parseLimit(r *http.Request) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return 0, false
	}
	return limit, true
}

// Вспомогательные функции для ответов
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

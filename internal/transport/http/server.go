package http

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"
)

// NewServer создает HTTP-обработчик с роутингом и middleware:
// идентификатор запроса, логирование и CORS.
func NewServer(log *slog.Logger, h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/news", h.getNews)
	mux.HandleFunc("GET /api/news.rss", h.getRSS)
	mux.HandleFunc("GET /api/news.atom", h.getAtom)
	mux.HandleFunc("GET /api/health", h.healthCheck)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	var handler http.Handler = mux
	handler = loggingMiddleware(log)(handler)
	handler = requestIDMiddleware(handler)
	handler = c.Handler(handler)
	return handler
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"newsfeed/internal/adapter/fetcher"
	"newsfeed/internal/adapter/parser"
	"newsfeed/internal/config"
	"newsfeed/internal/enhancer"
	"newsfeed/internal/logger"
	"newsfeed/internal/migrations"
	server "newsfeed/internal/transport/http"
	"newsfeed/internal/usecase"
	"newsfeed/internal/worker"
	"newsfeed/storage"
)

const shutdownTimeout = 10 * time.Second

// App представляет основное приложение агрегатора новостей.
// Координирует работу HTTP-сервера, воркера обработки лент, хранилища
// и системы логирования. Обеспечивает graceful startup и shutdown.
type App struct {
	config  *config.Config
	logger  *slog.Logger
	server  *http.Server
	worker  *worker.Worker
	storage storage.Storage
	wg      sync.WaitGroup
}

// New создает и инициализирует приложение: логгер, хранилище с миграциями,
// загрузчик, цепочку обогащения статей, воркер и HTTP-сервер.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	slog.SetDefault(appLogger)

	db, err := OpenStorage(ctx, cfg, appLogger)
	if err != nil {
		return nil, err
	}

	feedNames := make(map[string]string)
	urls := make([]string, 0, len(cfg.App.FeedURLs))
	for _, feed := range cfg.App.FeedURLs {
		feedNames[feed.URL] = feed.Name
		urls = append(urls, feed.URL)
	}

	httpFetcher := fetcher.NewHTTPFetcher(appLogger)
	feedParser := parser.NewFeedParser(appLogger)
	chain, err := BuildEnhancer(cfg.Enhancer, httpFetcher, appLogger)
	if err != nil {
		db.Close()
		return nil, err
	}

	feedProcessor := usecase.NewFeedProcessingUseCase(httpFetcher, feedParser, db, appLogger, feedNames,
		usecase.WithEnhancer(chain, cfg.App.ArticleConcurrency),
		usecase.WithEnhanceTimeout(cfg.App.EnhanceTimeoutDuration()))
	newsGetter := usecase.NewNewsGetterUseCase(db, cfg.App.DefaultNewsLimit)

	handler := server.NewHandler(appLogger, newsGetter, server.FeedInfo{
		Title:       "News",
		Link:        "http://" + cfg.Server.Address,
		Description: fmt.Sprintf("Latest news from %d feeds", len(urls)),
	})
	router := server.NewServer(appLogger, handler)

	processInterval, err := time.ParseDuration(cfg.App.ProcessingInterval)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bad init app: %w", err)
	}

	return &App{
		config:  cfg,
		logger:  appLogger,
		server:  &http.Server{Addr: cfg.Server.Address, Handler: router},
		worker:  worker.New(feedProcessor, urls, processInterval, cfg.App.FeedTimeoutDuration(), appLogger),
		storage: db,
	}, nil
}

// OpenStorage открывает хранилище, выбранное в database.driver,
// и применяет миграции.
func OpenStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := storage.OpenSQLite(ctx, cfg.Database.Path, cfg.App, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return db, nil
	case config.DriverPostgres:
		dbPool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		if err := migrations.Apply(ctx, log, dbPool); err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		return storage.NewPostgresNewsDB(dbPool, cfg.App, log), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// BuildEnhancer собирает цепочку обогащения: сначала правила XPath,
// затем шаблоны для извлечения текста через readability.
func BuildEnhancer(cfg config.EnhancerConfig, pages enhancer.PageFetcher, log *slog.Logger) (*enhancer.Chain, error) {
	rules, err := enhancer.NewRuleTable(cfg.XPathRules)
	if err != nil {
		return nil, fmt.Errorf("failed to build xpath rules: %w", err)
	}
	enhancers := []enhancer.ArticleEnhancer{enhancer.NewXPathEnhancer(pages, rules, cfg, log)}
	if len(cfg.ReadabilityPatterns) > 0 {
		re, err := enhancer.NewReadabilityEnhancer(pages, cfg.ReadabilityPatterns, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to build readability enhancer: %w", err)
		}
		enhancers = append(enhancers, re)
	}
	log.Info("Article enhancer configured",
		slog.String("component", "app"),
		slog.Int("xpath_rules", rules.Len()),
		slog.Int("readability_patterns", len(cfg.ReadabilityPatterns)),
	)
	return enhancer.NewChain(enhancers...), nil
}

// Run запускает воркер и HTTP-сервер и блокируется до отмены ctx
// или падения сервера, после чего выполняет Shutdown.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting News Aggregator",
		slog.String("component", "app"),
		slog.Int("feed_count", len(a.worker.GetURLs())),
		slog.String("processing_interval", a.worker.GetInterval().String()),
	)
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.storage.Close()
		return fmt.Errorf("failed to create listener: %w", err)
	}
	if err := a.worker.Start(); err != nil {
		listener.Close()
		a.storage.Close()
		return err
	}
	a.logger.Info("HTTP server ready",
		slog.String("component", "server"),
		slog.String("address", listener.Addr().String()),
	)
	serverErr := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", slog.String("component", "server"), slog.Any("error", err))
			serverErr <- err
		}
	}()
	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received", slog.String("component", "app"))
	case runErr = <-serverErr:
	}
	if err := a.Shutdown(); err != nil {
		return err
	}
	return runErr
}

// Shutdown останавливает воркер, завершает HTTP-сервер с таймаутом,
// закрывает хранилище и ждет завершения всех горутин.
func (a *App) Shutdown() error {
	a.logger.Info("Starting graceful shutdown", slog.String("component", "app"))
	a.worker.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var shutdownErr error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", slog.Any("error", err))
		shutdownErr = fmt.Errorf("http server shutdown: %w", err)
	}
	a.wg.Wait()
	a.storage.Close()
	a.logger.Info("Application stopped gracefully", slog.String("component", "app"))
	return shutdownErr
}

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// defaultFeedTimeout ограничивает обработку одной ленты, если бюджет не задан.
const defaultFeedTimeout = 2 * time.Minute

// FeedProcessor определяет интерфейс для обработки отдельных лент.
type FeedProcessor interface {
	ProcessFeed(ctx context.Context, url string) error
}

// Stats содержит накопленные счетчики обработки лент.
type Stats struct {
	Cycles    int64
	Succeeded int64
	Failed    int64
}

// Worker периодически обрабатывает все ленты по расписанию cron.
// Первый цикл запускается сразу после Start.
type Worker struct {
	processor FeedProcessor
	urls      []string
	interval  time.Duration
	timeout   time.Duration
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	cron   *cron.Cron
	wg     sync.WaitGroup

	cycles    atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// New создает нового воркера для обработки лент.
// Принимает процессор, список URL, интервал обработки, бюджет времени
// на одну ленту и логгер.
func New(processor FeedProcessor, urls []string, interval, feedTimeout time.Duration, log *slog.Logger) *Worker {
	if feedTimeout <= 0 {
		feedTimeout = defaultFeedTimeout
	}
	return &Worker{
		processor: processor,
		urls:      urls,
		interval:  interval,
		timeout:   feedTimeout,
		log:       log.With(slog.String("component", "worker")),
	}
}

// Start регистрирует задачу в планировщике и сразу запускает первый цикл.
func (w *Worker) Start() error {
	if w.processor == nil {
		return fmt.Errorf("worker: feed processor is not set")
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	cronLog := cronLogger{log: w.log}
	w.cron = cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := w.cron.AddFunc("@every "+w.interval.String(), w.processAllFeeds); err != nil {
		w.cancel()
		return fmt.Errorf("worker: failed to schedule feeds every %s: %w", w.interval, err)
	}
	w.log.Info("Feed processing worker started",
		slog.String("interval", w.interval.String()),
		slog.Int("feed_count", len(w.urls)),
	)
	w.cron.Start()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processAllFeeds()
	}()
	return nil
}

// Stop отменяет текущие операции и ждет завершения запущенных циклов.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.log.Info("Worker stopping")
	w.cancel()
	<-w.cron.Stop().Done()
	w.wg.Wait()
	w.log.Info("Worker stopped")
}

// processAllFeeds обрабатывает все ленты параллельно, по горутине на ленту.
func (w *Worker) processAllFeeds() {
	if w.ctx.Err() != nil {
		return
	}
	start := time.Now()
	w.cycles.Add(1)
	w.log.Info("Feed processing cycle started", slog.Int("feed_to_process", len(w.urls)))
	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	for _, url := range w.urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if w.ctx.Err() != nil {
				return
			}
			opCtx, opCancel := context.WithTimeout(w.ctx, w.timeout)
			defer opCancel()
			if err := w.processor.ProcessFeed(opCtx, u); err != nil {
				errorCount.Add(1)
				w.log.Error("Feed processing failed",
					slog.String("url", u),
					slog.Any("error", err),
				)
				return
			}
			successCount.Add(1)
		}(url)
	}
	wg.Wait()
	w.succeeded.Add(successCount.Load())
	w.failed.Add(errorCount.Load())
	w.log.Info("Feed processing cycle completed",
		slog.Int64("successful", successCount.Load()),
		slog.Int64("errors", errorCount.Load()),
		slog.Int("total", len(w.urls)),
		slog.Duration("duration", time.Since(start)),
	)
}

// Stats возвращает счетчики с момента запуска.
func (w *Worker) Stats() Stats {
	return Stats{
		Cycles:    w.cycles.Load(),
		Succeeded: w.succeeded.Load(),
		Failed:    w.failed.Load(),
	}
}

// GetURLs возвращает список URL, которые обрабатывает воркер.
func (w *Worker) GetURLs() []string { return w.urls }

// GetInterval возвращает интервал обработки лент.
func (w *Worker) GetInterval() time.Duration { return w.interval }

// cronLogger направляет сообщения планировщика в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}

package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/net/html/charset"

	"newsfeed/internal/domain"
)

const (
	// DefaultMaxBodyBytes ограничивает размер загружаемой страницы.
	DefaultMaxBodyBytes = 5 << 20
	defaultPageTimeout  = 30 * time.Second
)

var (
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// Options настраивает загрузку страниц статей.
type Options struct {
	MaxBodyBytes int64
	// BreakerFailures - число подряд неудачных загрузок с одного хоста,
	// после которого хост временно пропускается. 0 отключает защиту.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultOptions возвращает настройки по умолчанию.
func DefaultOptions() Options {
	return Options{
		MaxBodyBytes:    DefaultMaxBodyBytes,
		BreakerFailures: 5,
		BreakerCooldown: time.Minute,
	}
}

// HTTPFetcher загружает RSS-ленты и страницы статей по HTTP.
// Безопасен для параллельного использования.
type HTTPFetcher struct {
	client *http.Client
	log    *slog.Logger
	opts   Options

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewHTTPFetcher создает новый экземпляр HTTPFetcher с настройками по умолчанию.
func NewHTTPFetcher(log *slog.Logger) *HTTPFetcher {
	return NewHTTPFetcherWithOptions(log, DefaultOptions())
}

// NewHTTPFetcherWithOptions создает HTTPFetcher с заданными настройками.
func NewHTTPFetcherWithOptions(log *slog.Logger, opts Options) *HTTPFetcher {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &HTTPFetcher{
		client:   http.DefaultClient,
		log:      log.With(slog.String("component", "fetcher")),
		opts:     opts,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Fetch выполняет HTTP-запрос для получения ленты по указанному URL.
// Возвращает тело ответа, которое должно быть закрыто после использования.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	log := f.log.With(slog.String("url", url))
	log.Info("Fetching URL")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Error("Failed to create HTTP request", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create request for url %s: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		log.Error("HTTP request failed", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch url %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		log.Error("Unexpected status code", slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("%w: %d for url %s", ErrUnexpectedStatus, resp.StatusCode, url)
	}
	log.Info("Successfully fetched URL")
	return resp.Body, nil
}

// FetchPage загружает страницу статьи с параметрами из req: таймаут,
// предел перенаправлений, заголовки, User-Agent и прокси. Тело ответа
// перекодируется в UTF-8 согласно Content-Type.
func (f *HTTPFetcher) FetchPage(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
	log := f.log.With(slog.String("url", req.URL))
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", req.URL, err)
	}
	cb := f.breaker(target.Host)
	if cb == nil {
		return f.fetchPage(ctx, req, log)
	}
	res, err := cb.Execute(func() (interface{}, error) {
		page, err := f.fetchPage(ctx, req, log)
		if err != nil && ctx.Err() != nil {
			return nil, callerCanceledError{err: err}
		}
		return page, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn("Host circuit breaker open, request rejected",
				slog.String("host", target.Host),
				slog.String("state", cb.State().String()),
			)
		}
		return nil, err
	}
	return res.(*domain.FetchResult), nil
}

func (f *HTTPFetcher) fetchPage(ctx context.Context, req domain.FetchRequest, log *slog.Logger) (*domain.FetchResult, error) {
	transport, err := newTransport(req)
	if err != nil {
		return nil, err
	}
	defer transport.CloseIdleConnections()
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	client := &http.Client{
		Transport:     transport,
		Timeout:       timeout,
		CheckRedirect: redirectPolicy(req.MaxRedirects),
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for url %s: %w", req.URL, err)
	}
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}
	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		log.Warn("Page request failed", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch url %s: %w", req.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Unexpected status code", slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("%w: %d for url %s", ErrUnexpectedStatus, resp.StatusCode, req.URL)
	}
	reader, err := charset.NewReader(io.LimitReader(resp.Body, f.opts.MaxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode body of %s: %w", req.URL, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		log.Warn("Failed to read page body", slog.Any("error", err))
		return nil, fmt.Errorf("failed to read body of %s: %w", req.URL, err)
	}
	log.Debug("Page fetched",
		slog.Int("status_code", resp.StatusCode),
		slog.Int("count", len(body)),
		slog.Duration("duration", time.Since(start)),
	)
	return &domain.FetchResult{
		Header:       resp.Header,
		Body:         body,
		EffectiveURL: resp.Request.URL.String(),
	}, nil
}

// callerCanceledError помечает ошибку, вызванную отменой контекста
// вызывающего. Такие ошибки не говорят о состоянии хоста и не считаются
// предохранителем как сбой.
type callerCanceledError struct {
	err error
}

func (e callerCanceledError) Error() string { return e.err.Error() }
func (e callerCanceledError) Unwrap() error { return e.err }

func countsAsSuccess(err error) bool {
	var canceled callerCanceledError
	return err == nil || errors.As(err, &canceled)
}

// breaker возвращает предохранитель для хоста, создавая его при первом обращении.
func (f *HTTPFetcher) breaker(host string) *gobreaker.CircuitBreaker {
	if f.opts.BreakerFailures == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	failures := f.opts.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     f.opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.log.Info("Host circuit breaker state changed",
				slog.String("host", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	f.breakers[host] = cb
	return cb
}

func redirectPolicy(max int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > max {
			return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, max)
		}
		return nil
	}
}

// newTransport создает транспорт для одного запроса. Без прокси в запросе
// прокси не используется вовсе, переменные окружения игнорируются.
func newTransport(req domain.FetchRequest) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if req.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if req.Proxy != nil {
		proxyURL, err := ProxyURL(*req.Proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return transport, nil
}

// ProxyURL собирает адрес прокси из host, port и "user:password".
// Host может содержать схему, например "socks5://proxy".
func ProxyURL(p domain.ProxyConfig) (*url.URL, error) {
	raw := p.Host
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid proxy host %q", p.Host)
	}
	if p.Port > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(p.Port))
	}
	if p.Auth != "" {
		user, pass, ok := strings.Cut(p.Auth, ":")
		if ok {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	return u, nil
}

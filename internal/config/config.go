package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Config представляет основную конфигурацию приложения.
// Содержит настройки сервера, логгера, приложения, базы данных и
// обогащения статей.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Logger   LoggerConfig   `json:"logger" yaml:"logger"`
	App      AppConfig      `json:"app" yaml:"app"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Enhancer EnhancerConfig `json:"enhancer" yaml:"enhancer"`
}

// ServerConfig содержит адрес HTTP-сервера приложения.
type ServerConfig struct {
	Address string `json:"address" yaml:"address"`
}

// LoggerConfig содержит настройки системы логирования.
// Пустые File и ErrorFile означают вывод в stdout и stderr.
type LoggerConfig struct {
	Level     string `json:"level" yaml:"level"`
	File      string `json:"file" yaml:"file"`
	ErrorFile string `json:"error_file" yaml:"error_file"`
}

// FeedURL представляет конфигурацию отдельной ленты.
type FeedURL struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// AppConfig содержит настройки бизнес-логики приложения.
type AppConfig struct {
	DefaultNewsLimit   int       `json:"default_news_limit" yaml:"default_news_limit"`
	FeedURLs           []FeedURL `json:"feed_urls" yaml:"feed_urls"`
	ProcessingInterval string    `json:"processing_interval" yaml:"processing_interval"`
	// ArticleConcurrency - сколько статей одной ленты загружается одновременно.
	ArticleConcurrency int `json:"article_concurrency" yaml:"article_concurrency"`
	// FeedTimeout ограничивает обработку одной ленты целиком, в секундах.
	FeedTimeout int `json:"feed_timeout" yaml:"feed_timeout"`
	// EnhanceTimeout ограничивает загрузку статей одной ленты, в секундах.
	// Должен быть меньше FeedTimeout.
	EnhanceTimeout int `json:"enhance_timeout" yaml:"enhance_timeout"`
}

// FeedTimeoutDuration возвращает бюджет обработки одной ленты.
func (c AppConfig) FeedTimeoutDuration() time.Duration {
	return time.Duration(c.FeedTimeout) * time.Second
}

// EnhanceTimeoutDuration возвращает бюджет загрузки статей одной ленты.
func (c AppConfig) EnhanceTimeoutDuration() time.Duration {
	return time.Duration(c.EnhanceTimeout) * time.Second
}

// DatabaseConfig содержит параметры подключения к хранилищу.
// Driver: "postgres" или "sqlite"; для sqlite используется Path.
type DatabaseConfig struct {
	Driver   string `json:"driver" yaml:"driver"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
	Path     string `json:"path" yaml:"path"`
}

// ProxyConfig задает HTTP-прокси для загрузки статей.
type ProxyConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	Auth string `json:"auth" yaml:"auth"`
}

// EnhancerConfig содержит правила и параметры загрузки полных статей.
// XPathRules сохраняет порядок из файла: срабатывает первое подходящее правило.
type EnhancerConfig struct {
	Proxy               ProxyConfig                            `json:"proxy" yaml:"proxy"`
	FetchTimeout        int                                    `json:"fetch_timeout" yaml:"fetch_timeout"`
	XPathRules          *orderedmap.OrderedMap[string, string] `json:"xpath_rules" yaml:"xpath_rules"`
	ReadabilityPatterns []string                               `json:"readability_patterns" yaml:"readability_patterns"`
}

func (c EnhancerConfig) ProxyHost() string { return c.Proxy.Host }
func (c EnhancerConfig) ProxyPort() int    { return c.Proxy.Port }
func (c EnhancerConfig) ProxyAuth() string { return c.Proxy.Auth }

// FeedFetcherTimeout возвращает таймаут загрузки статьи.
func (c EnhancerConfig) FeedFetcherTimeout() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DSN возвращает строку подключения к PostgreSQL в формате URI.
func (c *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Load загружает конфигурацию из файла. Формат определяется по расширению:
// .yaml и .yml разбираются как YAML, остальные - как JSON.
// Незаданные поля сохраняют значения по умолчанию.
func Load(configPath string) (*Config, error) {
	cfg := New()
	fileData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(fileData, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML from file %s: %w", configPath, err)
		}
	default:
		if err := json.Unmarshal(fileData, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON from file %s: %w", configPath, err)
		}
	}
	return cfg, nil
}

// New создает новый экземпляр Config со значениями по умолчанию.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		App: AppConfig{
			DefaultNewsLimit:   10,
			ProcessingInterval: "3m",
			FeedURLs:           []FeedURL{},
			ArticleConcurrency: 4,
			FeedTimeout:        120,
			EnhanceTimeout:     90,
		},
		Database: DatabaseConfig{
			Driver:  DriverPostgres,
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Path:    "news.db",
		},
		Enhancer: EnhancerConfig{
			FetchTimeout: 60,
			XPathRules:   orderedmap.New[string, string](),
		},
	}
}

// Validate проверяет корректность конфигурации и возвращает
// описание первой найденной проблемы.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is not set")
		}
		if c.Database.Username == "" {
			return fmt.Errorf("database username is not set")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database password is not set")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is not set")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.App.DefaultNewsLimit <= 0 {
		return fmt.Errorf("app.default_news_limit must be a positive number")
	}
	if c.App.ArticleConcurrency <= 0 {
		return fmt.Errorf("app.article_concurrency must be a positive number")
	}
	if len(c.App.FeedURLs) == 0 {
		return fmt.Errorf("app.feed_urls must not be empty")
	}
	for _, feed := range c.App.FeedURLs {
		if _, err := url.ParseRequestURI(feed.URL); err != nil {
			return fmt.Errorf("invalid url in app.feed_urls: %s", feed.URL)
		}
		if feed.Name == "" {
			return fmt.Errorf("feed name cannot be empty for url: %s", feed.URL)
		}
	}
	if _, err := time.ParseDuration(c.App.ProcessingInterval); err != nil {
		return fmt.Errorf("invalid app.processing_interval: %w", err)
	}
	if c.App.FeedTimeout <= 0 {
		return fmt.Errorf("app.feed_timeout must be a positive number of seconds")
	}
	if c.App.EnhanceTimeout <= 0 || c.App.EnhanceTimeout >= c.App.FeedTimeout {
		return fmt.Errorf("app.enhance_timeout must be positive and less than app.feed_timeout (%d)", c.App.FeedTimeout)
	}
	if c.Enhancer.FetchTimeout <= 0 {
		return fmt.Errorf("enhancer.fetch_timeout must be a positive number of seconds")
	}
	if c.Enhancer.FetchTimeout >= c.App.EnhanceTimeout {
		return fmt.Errorf("enhancer.fetch_timeout must be less than app.enhance_timeout (%d)", c.App.EnhanceTimeout)
	}
	if c.Enhancer.Proxy.Host != "" && (c.Enhancer.Proxy.Port < 0 || c.Enhancer.Proxy.Port > 65535) {
		return fmt.Errorf("invalid enhancer.proxy.port: %d", c.Enhancer.Proxy.Port)
	}
	return nil
}

package domain

import (
	"net/http"
	"time"
)

// ProxyConfig описывает HTTP-прокси для загрузки страниц.
// Auth передается в виде "user:password".
type ProxyConfig struct {
	Host string
	Port int
	Auth string
}

// FetchRequest содержит все параметры загрузки одной страницы.
// Proxy равен nil, если прокси не используется.
type FetchRequest struct {
	URL           string
	Timeout       time.Duration
	MaxRedirects  int
	Headers       http.Header
	UserAgent     string
	SkipTLSVerify bool
	Proxy         *ProxyConfig
}

// FetchResult - результат загрузки страницы: заголовки ответа и тело.
type FetchResult struct {
	Header       http.Header
	Body         []byte
	EffectiveURL string
}

// ContentType возвращает значение заголовка Content-Type.
func (r *FetchResult) ContentType() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

package enhancer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed/internal/domain"
)

func TestFetchHTML(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	const url = "https://explosm.net/comics/1"
	tests := []struct {
		name    string
		result  *domain.FetchResult
		err     error
		wantErr error
	}{
		{"html", htmlPage("<p>hi</p>"), nil, nil},
		{"missing content type", &domain.FetchResult{Body: []byte("<p>hi</p>")}, nil, nil},
		{"xhtml", &domain.FetchResult{Header: http.Header{"Content-Type": []string{"application/xhtml+xml"}}, Body: []byte("<p/>")}, nil, nil},
		{"json", &domain.FetchResult{Header: http.Header{"Content-Type": []string{"application/json"}}, Body: []byte("{}")}, nil, ErrNotHTML},
		{"empty body", htmlPage(""), nil, ErrEmptyPage},
		{"nil result", nil, nil, ErrEmptyPage},
		{"fetch error", nil, errors.New("timeout"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &mockFetcher{}
			fetcher.On("FetchPage", expectedRequest(url)).Return(tt.result, tt.err)

			body, err := fetchHTML(context.Background(), fetcher, noProxySettings(), url, log)

			switch {
			case tt.err != nil:
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, body)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, body)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.result.Body, body)
			}
		})
	}
}

func TestNewFetchRequest_Proxy(t *testing.T) {
	req := newFetchRequest("https://a.example", stubSettings{host: "proxy", port: 8080, auth: "u:p"})

	require.NotNil(t, req.Proxy)
	assert.Equal(t, domain.ProxyConfig{Host: "proxy", Port: 8080, Auth: "u:p"}, *req.Proxy)
	assert.Equal(t, DefaultMaxRedirects, req.MaxRedirects)
	assert.Equal(t, UserAgent, req.UserAgent)
	assert.False(t, req.SkipTLSVerify)
	assert.Nil(t, req.Headers)
}

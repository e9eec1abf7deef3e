package jina

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClient(key string, opts ...Option) Client {
	return NewClient(key, append([]Option{WithRetry(3, time.Millisecond)}, opts...)...)
}

func TestRead_MarkdownDefault(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "markdown", r.Header.Get("X-Return-Format"))
		assert.Equal(t, "/https://sunsetrealty.example", r.URL.Path)

		_ = json.NewEncoder(w).Encode(ReadResponse{
			Code: 200,
			Data: ReadData{Title: "Sunset Realty", Content: "# Sunset\n\ninfo@sunsetrealty.example"},
		})
	}))
	defer srv.Close()

	got, err := fastClient("test-key", WithBaseURL(srv.URL)).Read(context.Background(), "https://sunsetrealty.example")

	require.NoError(t, err)
	assert.Equal(t, "Sunset Realty", got.Data.Title)
	assert.Contains(t, got.Data.Markup(), "info@sunsetrealty.example")
}

func TestRead_HTMLOptions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "html", r.Header.Get("X-Return-Format"))
		assert.Equal(t, "#contact", r.Header.Get("X-Wait-For-Selector"))
		assert.Equal(t, "20", r.Header.Get("X-Timeout"))
		assert.Equal(t, "true", r.Header.Get("X-No-Cache"))

		_ = json.NewEncoder(w).Encode(ReadResponse{
			Code: 200,
			Data: ReadData{HTML: `<html><a href="mailto:a@b.example">x</a></html>`},
		})
	}))
	defer srv.Close()

	got, err := fastClient("k", WithBaseURL(srv.URL)).Read(context.Background(), "https://b.example",
		WithReturnFormat(FormatHTML), WithWaitForSelector("#contact"),
		WithReadTimeout(20*time.Second), WithNoCache())

	require.NoError(t, err)
	assert.Contains(t, got.Data.Markup(), "mailto:a@b.example")
}

func TestRead_NoKeyOmitsAuthorization(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"code":200,"data":{}}`))
	}))
	defer srv.Close()

	_, err := fastClient("", WithBaseURL(srv.URL)).Read(context.Background(), "https://x.example")
	require.NoError(t, err)
}

func TestRead_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer srv.Close()

	_, err := fastClient("k", WithBaseURL(srv.URL)).Read(context.Background(), "https://x.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestRead_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{broken`))
	}))
	defer srv.Close()

	_, err := fastClient("k", WithBaseURL(srv.URL)).Read(context.Background(), "https://x.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestRead_RetryOn429(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"content":"ok"}}`))
	}))
	defer srv.Close()

	got, err := fastClient("k", WithBaseURL(srv.URL)).Read(context.Background(), "https://x.example")
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Data.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRead_RetryExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fastClient("k", WithBaseURL(srv.URL)).Read(context.Background(), "https://x.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(3), calls.Load())
}

func TestRead_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Read(ctx, "https://x.example")
	require.Error(t, err)
}

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Sunset Realty real estate", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("num"))
		_ = json.NewEncoder(w).Encode(SearchResponse{
			Code: 200,
			Data: []SearchResult{
				{Title: "Sunset Realty", URL: "https://sunsetrealty.example"},
				{Title: "Sunset on Idealista", URL: "https://www.idealista.com/pro/sunset"},
			},
		})
	}))
	defer srv.Close()

	got, err := fastClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "Sunset Realty real estate", WithNum(5))
	require.NoError(t, err)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "https://sunsetrealty.example", got.Data[0].URL)
}

func TestSearch_WithSiteFilter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sunsetrealty.example", r.URL.Query().Get("site"))
		_, _ = w.Write([]byte(`{"code":200,"data":[]}`))
	}))
	defer srv.Close()

	_, err := fastClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "contact", WithSiteFilter("sunsetrealty.example"))
	require.NoError(t, err)
}

func TestSearch_422IsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	got, err := fastClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, got.Data)
}

func TestSearch_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := fastClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestRetryableStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{200, false},
		{404, false},
		{422, false},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryableStatusCode(tt.code), "code %d", tt.code)
	}
}

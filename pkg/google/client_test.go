package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "engine-1", r.URL.Query().Get("cx"))
		assert.Equal(t, "Sunset Realty real estate", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("num"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResponse{
			Items: []Item{
				{Title: "Sunset Realty", Link: "https://sunsetrealty.example/", DisplayLink: "sunsetrealty.example"},
				{Title: "Sunset Realty - Idealista", Link: "https://www.idealista.com/pro/sunset/"},
			},
			SearchInformation: SearchInformation{TotalResults: "2"},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", "engine-1", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), "Sunset Realty real estate", 5)

	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "https://sunsetrealty.example/", resp.Items[0].Link)
	assert.Equal(t, "2", resp.SearchInformation.TotalResults)
}

func TestSearch_ClampsNum(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("num"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient("k", "cx", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "q", 50)
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "q", 0)
	require.NoError(t, err)
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"searchInformation":{"totalResults":"0"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", "cx", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), "Nonexistent Agency", 5)

	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", "cx", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "test", 5)

	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSearch_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("k", "cx", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "test", 5)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestSearch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("k", "cx", WithBaseURL(srv.URL))
	_, err := client.Search(ctx, "test", 5)
	require.Error(t, err)
}

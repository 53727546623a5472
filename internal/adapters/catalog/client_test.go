package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacs-team/appfun-api/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{
		Config: config.CatalogConfig{
			BaseURL:       srv.URL,
			APIKey:        "test-key",
			ListExpr:      "data.items",
			SlugExpr:      "slug",
			UpdatedAtExpr: "updated_at",
		},
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientOptions{Config: config.CatalogConfig{ListExpr: "data", SlugExpr: "slug"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")

	_, err = NewClient(ClientOptions{Config: config.CatalogConfig{
		BaseURL:  "http://example.com",
		ListExpr: "data.[",
		SlugExpr: "slug",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile")
}

func TestClient_ListEntries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/software", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {"items": [
				{"slug": "photo-editor", "updated_at": "2026-05-01T12:00:00Z"},
				{"slug": "note-taker"},
				{"name": "no slug, skipped"}
			]}
		}`))
	})

	entries, err := client.ListEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "photo-editor", entries[0].Slug)
	require.NotNil(t, entries[0].UpdatedAt)
	assert.Equal(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), entries[0].UpdatedAt.UTC())

	assert.Equal(t, "note-taker", entries[1].Slug)
	assert.Nil(t, entries[1].UpdatedAt)
}

func TestClient_ListEntries_EmptyCollection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"items": null}}`))
	})

	entries, err := client.ListEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClient_ListEntries_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListEntries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_ListEntries_WrongShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"items": "not an array"}}`))
	})

	_, err := client.ListEntries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want array")
}

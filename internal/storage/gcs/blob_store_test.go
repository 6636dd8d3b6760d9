package gcs_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/storage/gcs"
)

func newTestStore(t *testing.T, handler http.Handler, prefix string) *gcs.BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := gcs.New(client, gcs.Config{Bucket: "test-bucket", Prefix: prefix})
	require.NoError(t, err)
	return store
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)
}

func TestPutObjectUploadsUnderPrefix(t *testing.T) {
	t.Parallel()

	payload := []byte(`[{"id":"1"}]`)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "snapshots/games.json", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), string(payload))

		fmt.Fprintln(w, `{ "name": "snapshots/games.json", "bucket": "test-bucket" }`)
	})
	store := newTestStore(t, handler, "/snapshots/")

	uri, err := store.PutObject(context.Background(), "games.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "gs://test-bucket/snapshots/games.json", uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	store := newTestStore(t, handler, "")

	_, err := store.PutObject(context.Background(), "games.json", "application/json", bytes.NewReader([]byte("[]")))
	require.Error(t, err)
}

func TestGetObjectMissing(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	store := newTestStore(t, handler, "")

	_, err := store.GetObject(context.Background(), "epic-games.json")
	require.ErrorIs(t, err, catalog.ErrObjectNotFound)
}

func TestEmptyPathRejected(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.NotFoundHandler(), "")
	_, err := store.GetObject(context.Background(), " ")
	require.Error(t, err)
	_, err = store.PutObject(context.Background(), "", "", bytes.NewReader(nil))
	require.Error(t, err)
}

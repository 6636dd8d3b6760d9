package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(newTestServer(&fakeChecker{}, nil), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_ReadyzReflectsLoadState(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	loaded := false
	ready := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return loaded
	}
	server := newTestServer(&fakeChecker{}, ready)
	require.Equal(t, http.StatusServiceUnavailable, serve(server, http.MethodGet, "/readyz", nil).Code)

	mu.Lock()
	loaded = true
	mu.Unlock()
	require.Equal(t, http.StatusOK, serve(server, http.MethodGet, "/readyz", nil).Code)
}

func TestServer_MetricsExposesCollectors(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeChecker{}, nil)
	serve(server, http.MethodGet, "/healthz", nil)
	rec := serve(server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "freebie_")
}

func TestServer_LatestListings(t *testing.T) {
	t.Parallel()

	checker := &fakeChecker{listings: []catalog.Listing{{ID: "1", Title: "One", Genres: []string{"Action"}}}}
	server := newTestServer(checker, nil)

	rec := serve(server, http.MethodGet, "/v1/listings/latest?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, checker.lastLimit)

	var body struct {
		Count    int               `json:"count"`
		Listings []catalog.Listing `json:"listings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, "One", body.Listings[0].Title)

	serve(server, http.MethodGet, "/v1/listings/latest", nil)
	require.Equal(t, defaultListingLimit, checker.lastLimit)
}

func TestServer_LatestListingsRejectsBadLimit(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeChecker{}, nil)
	for _, q := range []string{"0", "-1", "abc", "101"} {
		rec := serve(server, http.MethodGet, "/v1/listings/latest?limit="+q, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestServer_ActivePromotions(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 1, 8, 16, 0, 0, 0, time.UTC)
	checker := &fakeChecker{promotions: []catalog.Promotion{{ID: "p", Title: "Gift", EndDate: end}}}
	rec := serve(newTestServer(checker, nil), http.MethodGet, "/v1/promotions/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"endDate":"2026-01-08T16:00:00Z"`)
	require.Contains(t, rec.Body.String(), `"count":1`)
}

func TestServer_RunCheck(t *testing.T) {
	t.Parallel()

	checker := &fakeChecker{report: catalog.CheckReport{RunID: "run-1", Kind: catalog.CheckListings, Found: 3, NewIDs: []string{"9"}}}
	server := newTestServer(checker, nil)

	rec := serve(server, http.MethodPost, "/v1/checks", []byte(`{"kind":"listings"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, catalog.CheckListings, checker.lastKind)
	require.Contains(t, rec.Body.String(), `"run_id":"run-1"`)
	require.Contains(t, rec.Body.String(), `"new_ids":["9"]`)
}

func TestServer_RunCheckErrors(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeChecker{}, nil)
	require.Equal(t, http.StatusBadRequest, serve(server, http.MethodPost, "/v1/checks", []byte("{invalid")).Code)
	require.Equal(t, http.StatusBadRequest, serve(server, http.MethodPost, "/v1/checks", []byte(`{}`)).Code)

	unknown := newTestServer(&fakeChecker{err: errors.New("unknown check kind")}, nil)
	require.Equal(t, http.StatusBadRequest, serve(unknown, http.MethodPost, "/v1/checks", []byte(`{"kind":"weather"}`)).Code)

	failed := newTestServer(&fakeChecker{report: catalog.CheckReport{Error: "upstream down"}}, nil)
	rec := serve(failed, http.MethodPost, "/v1/checks", []byte(`{"kind":"listings"}`))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "upstream down")
}

func TestServer_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	rec := serve(newTestServer(&fakeChecker{panics: true}, nil), http.MethodGet, "/v1/promotions/active", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := serve(newTestServer(&fakeChecker{}, nil), http.MethodGet, "/healthz", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.EqualError(t, err, "hijacker not supported")

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, h.CloseClient())
	require.NotNil(t, buf)
}

// --- helpers/fakes ---

type fakeChecker struct {
	mu         sync.Mutex
	listings   []catalog.Listing
	promotions []catalog.Promotion
	report     catalog.CheckReport
	err        error
	panics     bool
	lastLimit  int
	lastKind   catalog.CheckKind
}

func (f *fakeChecker) Check(ctx context.Context, kind catalog.CheckKind) (catalog.CheckReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Done() != nil {
		return catalog.CheckReport{}, errors.New("check context must not be cancelable")
	}
	f.lastKind = kind
	return f.report, f.err
}

func (f *fakeChecker) LatestListings(n int) []catalog.Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = n
	return f.listings
}

func (f *fakeChecker) ActivePromotions() []catalog.Promotion {
	if f.panics {
		panic("store exploded")
	}
	return f.promotions
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

func newTestServer(checker Checker, ready func() bool) *Server {
	return NewServer(checker, ready, Config{RequestTimeout: 5 * time.Second}, zap.NewNop())
}

func serve(server *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	server.Handler().ServeHTTP(rec, req)
	return rec
}

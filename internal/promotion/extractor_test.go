package promotion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/fault"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type pageFetcher struct {
	body  string
	err   error
	calls int
	urls  []string
}

func (p *pageFetcher) Fetch(_ context.Context, req catalog.FetchRequest) (catalog.FetchResponse, error) {
	p.calls++
	p.urls = append(p.urls, req.URL)
	if p.err != nil {
		return catalog.FetchResponse{}, p.err
	}
	return catalog.FetchResponse{StatusCode: 200, Body: []byte(p.body)}, nil
}

func apiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("locale") != "ru" || q.Get("country") != "RU" || q.Get("allowCountries") != "RU" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestExtractor(api *APIClient, fetcher catalog.Fetcher) *Extractor {
	return NewExtractor(api, fetcher, DefaultStorefront(), fixedClock{now: testNow}, zap.NewNop())
}

func TestCurrentlyFreeFromAPI(t *testing.T) {
	t.Parallel()

	raw, err := os.ReadFile("testdata/api.json")
	require.NoError(t, err)
	srv := apiServer(t, http.StatusOK, string(raw))
	page := &pageFetcher{}

	found := newTestExtractor(NewAPIClient(srv.URL, DefaultStorefront(), "test-agent", time.Second), page).
		CurrentlyFree(context.Background())
	require.Len(t, found, 1)

	p := found[0]
	require.Equal(t, "free-now", p.ID)
	require.Equal(t, "Free Game", p.Title)
	require.Equal(t, "ns-free", p.Namespace)
	require.Equal(t, "https://store.epicgames.com/ru/p/free-game-slug", p.URL)
	require.Equal(t, "https://img/tall.jpg", p.ImageURL)
	require.Equal(t, "499 RUB", p.OriginalPrice)
	require.Equal(t, "Pub House", p.Publisher)
	require.Equal(t, "Studio", p.Developer)
	require.Equal(t, time.Date(2025, 1, 9, 16, 0, 0, 0, time.UTC), p.EndDate)
	require.Zero(t, page.calls, "page strategies must not run after API success")
}

func TestCurrentlyFreeFallsBackToEmbeddedThenDOM(t *testing.T) {
	t.Parallel()

	srv := apiServer(t, http.StatusServiceUnavailable, `oops`)
	api := NewAPIClient(srv.URL, DefaultStorefront(), "", time.Second)

	page := &pageFetcher{body: readFixture(t, "embedded_initial_state.html")}
	found := newTestExtractor(api, page).CurrentlyFree(context.Background())
	require.Len(t, found, 1)
	require.Equal(t, "emb-1", found[0].ID)
	require.Equal(t, []string{"https://store.epicgames.com/ru/free-games"}, page.urls)

	page = &pageFetcher{body: readFixture(t, "dom_cards.html")}
	found = newTestExtractor(api, page).CurrentlyFree(context.Background())
	require.Len(t, found, 2)
	require.Equal(t, 1, page.calls, "page is fetched once for both page strategies")
}

func TestCurrentlyFreeEmptyAPIFallsThrough(t *testing.T) {
	t.Parallel()

	srv := apiServer(t, http.StatusOK, `{"data":{"Catalog":{"searchStore":{"elements":[]}}}}`)
	page := &pageFetcher{body: readFixture(t, "dom_cards.html")}
	found := newTestExtractor(NewAPIClient(srv.URL, DefaultStorefront(), "", time.Second), page).
		CurrentlyFree(context.Background())
	require.Len(t, found, 2)
}

func TestCurrentlyFreeAllStrategiesFail(t *testing.T) {
	t.Parallel()

	srv := apiServer(t, http.StatusTooManyRequests, ``)
	page := &pageFetcher{err: errors.New("connection refused")}
	found := newTestExtractor(NewAPIClient(srv.URL, DefaultStorefront(), "", time.Second), page).
		CurrentlyFree(context.Background())
	require.NotNil(t, found)
	require.Empty(t, found)
	require.Equal(t, 1, page.calls)
}

func TestCurrentlyFreeWithoutStrategies(t *testing.T) {
	t.Parallel()

	require.Empty(t, newTestExtractor(nil, nil).CurrentlyFree(context.Background()))
}

func TestAPIClientTagsStatus(t *testing.T) {
	t.Parallel()

	srv := apiServer(t, http.StatusTooManyRequests, ``)
	_, err := NewAPIClient(srv.URL, DefaultStorefront(), "", time.Second).Elements(context.Background())
	require.Error(t, err)
	require.True(t, fault.Is(err, fault.KindRateLimited))

	srv = apiServer(t, http.StatusOK, `{"data":{}}`)
	_, err = NewAPIClient(srv.URL, DefaultStorefront(), "", time.Second).Elements(context.Background())
	require.True(t, fault.Is(err, fault.KindExtraction))
}

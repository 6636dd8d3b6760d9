package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/fault"
	"github.com/JakeFAU/freebie-watch/internal/textenc"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "freebie-agent", RespectRobots: false, Timeout: time.Second})
	collector := f.buildCollector(catalog.FetchRequest{URL: "https://example.com"}, time.Unix(0, 0), &catalog.FetchResponse{}, new(error))
	require.Equal(t, "freebie-agent", collector.UserAgent)
	require.True(t, collector.IgnoreRobotsTxt)
	require.True(t, collector.ParseHTTPErrorResponse)
	require.True(t, collector.AllowURLRevisit)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: http.Header{"Accept-Language": {"ru-RU"}}})
	req := catalog.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result catalog.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	require.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))
	require.Equal(t, "ru-RU", collyReq.Headers.Get("Accept-Language"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers: &http.Header{
			"Content-Type":            {"text/html"},
			"X-Declared-Content-Type": {"text/html; charset=windows-1251"},
		},
		Request: &colly.Request{URL: mustParseURL(t, "https://example.com")},
	})
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "text/html; charset=windows-1251", result.ContentType)
	require.Empty(t, result.Headers.Get("X-Declared-Content-Type"))

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
	require.Equal(t, http.StatusBadGateway, result.StatusCode)
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(catalog.FetchRequest{}, collyReq)
	require.Empty(t, *collyReq.Headers)
}

func TestFetchKeepsOriginalBytes(t *testing.T) {
	t.Parallel()

	const text = "Бесплатные игры"
	encoded, err := charmap.Windows1251.NewEncoder().String(text)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	resp, err := f.Fetch(context.Background(), catalog.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, []byte(encoded), resp.Body)
	require.Equal(t, "text/html; charset=windows-1251", resp.ContentType)
	require.Equal(t, text, textenc.Decode(resp.Body, resp.ContentType))

	// Same URL twice must not be rejected as already visited.
	_, err = f.Fetch(context.Background(), catalog.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
}

func TestFetchTagsStatusErrors(t *testing.T) {
	t.Parallel()

	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), catalog.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	require.True(t, fault.Is(err, fault.KindRateLimited))
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(ctx, catalog.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type countingLimiter struct{ calls int }

func (c *countingLimiter) Wait(context.Context, string) error {
	c.calls++
	return nil
}

func TestFetchConsultsLimiter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	f := New(Config{}, WithLimiter(limiter))
	_, err := f.Fetch(context.Background(), catalog.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, 1, limiter.calls)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}

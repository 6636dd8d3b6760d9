package listing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

type recordingFetcher struct {
	resp catalog.FetchResponse
	err  error
	reqs []catalog.FetchRequest
}

func (r *recordingFetcher) Fetch(_ context.Context, req catalog.FetchRequest) (catalog.FetchResponse, error) {
	r.reqs = append(r.reqs, req)
	return r.resp, r.err
}

func TestSourcePageURL(t *testing.T) {
	t.Parallel()

	s := NewSource("https://freetp.org/", nil, nil, 0, nil)
	require.Equal(t, "https://freetp.org", s.PageURL(0))
	require.Equal(t, "https://freetp.org", s.PageURL(1))
	require.Equal(t, "https://freetp.org/page/3", s.PageURL(3))
}

func TestSourceLatestDecodesLegacyEncoding(t *testing.T) {
	t.Parallel()

	markup := `<div class="base"><div class="header-h1"><h1><a href="/77-igra.html">Игра</a></h1></div></div>`
	encoded, err := charmap.Windows1251.NewEncoder().String(markup)
	require.NoError(t, err)

	f := &recordingFetcher{resp: catalog.FetchResponse{StatusCode: 200, Body: []byte(encoded), ContentType: "text/html"}}
	s := NewSource("https://freetp.org", f, newTestExtractor(t), 0, nil)

	listings, err := s.Latest(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, "Игра", listings[0].Title)
	require.Equal(t, "77", listings[0].ID)

	require.Len(t, f.reqs, 1)
	require.Equal(t, "https://freetp.org/page/2", f.reqs[0].URL)
	require.Equal(t, "identity", f.reqs[0].Headers.Get("Accept-Encoding"))
}

func TestSourceLatestWrapsFetchErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := NewSource("https://freetp.org", &recordingFetcher{err: boom}, newTestExtractor(t), 0, nil)
	_, err := s.Latest(context.Background(), 1, 10)
	require.ErrorIs(t, err, boom)
}

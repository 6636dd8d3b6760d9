package listing

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/textenc"
)

// DefaultHeaders mimic a desktop browser asking for Russian content.
// Accept-Encoding is pinned to identity so bodies reach the decoder untouched.
func DefaultHeaders() http.Header {
	return http.Header{
		"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"},
		"Accept-Language":           {"ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7"},
		"Accept-Encoding":           {"identity"},
		"Upgrade-Insecure-Requests": {"1"},
	}
}

// Source reads catalog pages from the upstream site.
type Source struct {
	baseURL   string
	fetcher   catalog.Fetcher
	extractor *Extractor
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSource builds a Source for baseURL.
func NewSource(baseURL string, fetcher catalog.Fetcher, extractor *Extractor, timeout time.Duration, logger *zap.Logger) *Source {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		baseURL:   strings.TrimRight(baseURL, "/"),
		fetcher:   fetcher,
		extractor: extractor,
		timeout:   timeout,
		logger:    logger,
	}
}

// PageURL returns the catalog URL for a 1-based page number.
func (s *Source) PageURL(page int) string {
	if page > 1 {
		return s.baseURL + "/page/" + strconv.Itoa(page)
	}
	return s.baseURL
}

// Latest fetches a catalog page and returns up to limit listings.
func (s *Source) Latest(ctx context.Context, page, limit int) ([]catalog.Listing, error) {
	pageURL := s.PageURL(page)
	resp, err := s.fetcher.Fetch(ctx, catalog.FetchRequest{
		URL:     pageURL,
		Headers: DefaultHeaders(),
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch catalog page %s: %w", pageURL, err)
	}
	markup := textenc.Decode(resp.Body, resp.ContentType)
	listings := s.extractor.Extract(markup, limit)
	s.logger.Info("catalog page parsed",
		zap.String("url", pageURL),
		zap.Int("listings", len(listings)),
		zap.Duration("duration", resp.Duration))
	return listings, nil
}

// Package promotion determines which storefront offers are free right now.
//
// Three strategies run in order of decreasing reliability: the structured
// promotions API, catalog state embedded in the promotions page, and scraping
// the page's offer cards. The next strategy runs only when the previous one
// failed or found nothing.
package promotion

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/fault"
	"github.com/JakeFAU/freebie-watch/internal/metrics"
	"github.com/JakeFAU/freebie-watch/internal/textenc"
)

// Strategy names reported in logs and metrics.
const (
	PathAPI      = "api"
	PathEmbedded = "embedded"
	PathDOM      = "dom"
	PathNone     = "none"
)

type strategy struct {
	name string
	run  func(ctx context.Context, page *pageLoader, now time.Time) ([]catalog.Promotion, error)
}

// Extractor runs the strategy cascade.
type Extractor struct {
	api        *APIClient
	fetcher    catalog.Fetcher
	store      Storefront
	clock      catalog.Clock
	logger     *zap.Logger
	strategies []strategy
	timeout    time.Duration
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithPageTimeout bounds the promotions page fetch.
func WithPageTimeout(d time.Duration) Option {
	return func(x *Extractor) { x.timeout = d }
}

// NewExtractor wires the cascade. A nil api skips the structured strategy;
// a nil fetcher skips both page strategies.
func NewExtractor(api *APIClient, fetcher catalog.Fetcher, store Storefront, clock catalog.Clock, logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	x := &Extractor{
		api:     api,
		fetcher: fetcher,
		store:   store,
		clock:   clock,
		logger:  logger,
		timeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(x)
	}
	if api != nil {
		x.strategies = append(x.strategies, strategy{name: PathAPI, run: x.fromAPI})
	}
	if fetcher != nil {
		x.strategies = append(x.strategies,
			strategy{name: PathEmbedded, run: x.fromPage(FromEmbeddedJSON)},
			strategy{name: PathDOM, run: x.fromPage(FromDOM)},
		)
	}
	return x
}

// CurrentlyFree returns the offers free right now. Failures are logged and
// yield an empty result; callers treat empty as "nothing found this cycle".
func (x *Extractor) CurrentlyFree(ctx context.Context) []catalog.Promotion {
	now := x.clock.Now()
	page := &pageLoader{fetcher: x.fetcher, url: x.store.FreeGamesURL(), timeout: x.timeout}
	for _, s := range x.strategies {
		found, err := x.runStrategy(ctx, s, page, now)
		if err != nil {
			x.logger.Warn("promotion strategy failed",
				zap.String("strategy", s.name),
				zap.Stringer("kind", fault.KindOf(err)),
				zap.Error(err))
			continue
		}
		if len(found) == 0 {
			x.logger.Debug("promotion strategy found nothing", zap.String("strategy", s.name))
			continue
		}
		x.logger.Info("promotions extracted", zap.String("strategy", s.name), zap.Int("count", len(found)))
		metrics.ObservePromotionPath(s.name)
		return found
	}
	metrics.ObservePromotionPath(PathNone)
	return []catalog.Promotion{}
}

func (x *Extractor) runStrategy(ctx context.Context, s strategy, page *pageLoader, now time.Time) (found []catalog.Promotion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault.Newf(fault.KindExtraction, s.name, "panic: %v", r)
		}
	}()
	return s.run(ctx, page, now)
}

func (x *Extractor) fromAPI(ctx context.Context, _ *pageLoader, now time.Time) ([]catalog.Promotion, error) {
	raw, err := x.api.Elements(ctx)
	if err != nil {
		return nil, err
	}
	elements, skipped := decodeElements(raw)
	if skipped > 0 {
		x.logger.Debug("skipped malformed catalog elements", zap.Int("skipped", skipped))
	}
	out := make([]catalog.Promotion, 0, len(elements))
	for _, el := range elements {
		if p, ok := el.toPromotion(x.store, now); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (x *Extractor) fromPage(parse func(string, Storefront, time.Time) []catalog.Promotion) func(context.Context, *pageLoader, time.Time) ([]catalog.Promotion, error) {
	return func(ctx context.Context, page *pageLoader, now time.Time) ([]catalog.Promotion, error) {
		markup, err := page.load(ctx)
		if err != nil {
			return nil, err
		}
		return parse(markup, x.store, now), nil
	}
}

// pageLoader fetches the promotions page at most once per cascade run.
type pageLoader struct {
	fetcher catalog.Fetcher
	url     string
	timeout time.Duration

	loaded bool
	markup string
	err    error
}

func (p *pageLoader) load(ctx context.Context) (string, error) {
	if p.loaded {
		return p.markup, p.err
	}
	p.loaded = true
	resp, err := p.fetcher.Fetch(ctx, catalog.FetchRequest{
		URL: p.url,
		Headers: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7"},
			"Referer":         {"https://www.google.com/"},
		},
		Timeout: p.timeout,
	})
	if err != nil {
		p.err = fmt.Errorf("fetch promotions page: %w", err)
		return "", p.err
	}
	contentType := resp.ContentType
	if contentType == "" {
		// The store always serves UTF-8; only the catalog site defaults to windows-1251.
		contentType = "text/html; charset=utf-8"
	}
	p.markup = textenc.Decode(resp.Body, contentType)
	return p.markup, nil
}

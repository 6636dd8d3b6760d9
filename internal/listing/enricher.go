package listing

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/fault"
	"github.com/JakeFAU/freebie-watch/internal/metrics"
	"github.com/JakeFAU/freebie-watch/internal/textenc"
)

// EnrichStats tallies one enrichment pass.
type EnrichStats struct {
	Succeeded int
	Failed    int
}

// EnricherConfig tunes detail-page enrichment.
type EnricherConfig struct {
	// Stagger delays the i-th fetch by i*Stagger.
	Stagger     time.Duration
	MaxAttempts int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
	Timeout time.Duration
	Headers http.Header
}

// Enricher fills in listing genres from detail pages.
type Enricher struct {
	fetcher catalog.Fetcher
	cfg     EnricherConfig
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	pending sync.WaitGroup
}

// NewEnricher builds an Enricher. Zero config values take the defaults
// 100ms stagger, 2 attempts, 500ms backoff, 20s timeout.
func NewEnricher(fetcher catalog.Fetcher, cfg EnricherConfig, logger *zap.Logger) *Enricher {
	if cfg.Stagger <= 0 {
		cfg.Stagger = 100 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{fetcher: fetcher, cfg: cfg, logger: logger, sleep: sleepCtx}
}

// Enrich runs Run in the background and hands the result to onComplete.
// The caller's slice is never modified; onComplete receives enriched copies.
func (e *Enricher) Enrich(ctx context.Context, listings []catalog.Listing, onComplete func([]catalog.Listing, EnrichStats)) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("enrichment panicked", zap.Any("panic", r))
			}
		}()
		enriched, stats := e.Run(ctx, listings)
		if onComplete != nil {
			onComplete(enriched, stats)
		}
	}()
}

// Wait blocks until every background pass started by Enrich has returned.
func (e *Enricher) Wait() {
	e.pending.Wait()
}

// Run enriches copies of listings concurrently and waits for every one to settle.
func (e *Enricher) Run(ctx context.Context, listings []catalog.Listing) ([]catalog.Listing, EnrichStats) {
	out := make([]catalog.Listing, len(listings))
	ok := make([]bool, len(listings))
	for i := range listings {
		out[i] = listings[i].Clone()
	}

	var wg sync.WaitGroup
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok[i] = e.enrichOne(ctx, i, &out[i])
		}(i)
	}
	wg.Wait()

	var stats EnrichStats
	for _, success := range ok {
		if success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	e.logger.Info("enrichment finished",
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed))
	return out, stats
}

func (e *Enricher) enrichOne(ctx context.Context, index int, item *catalog.Listing) (success bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("enrichment of listing panicked", zap.String("id", item.ID), zap.Any("panic", r))
			item.Genres = []string{catalog.GenreUnspecified}
			success = false
		}
	}()

	if index > 0 {
		if err := e.sleep(ctx, time.Duration(index)*e.cfg.Stagger); err != nil {
			item.Genres = []string{catalog.GenreUnspecified}
			metrics.ObserveEnrich("canceled")
			return false
		}
	}

	genres, err := e.fetchGenres(ctx, item.URL)
	if err != nil {
		e.logger.Warn("genre lookup failed",
			zap.String("id", item.ID),
			zap.String("url", item.URL),
			zap.Stringer("kind", fault.KindOf(err)),
			zap.Error(err))
		item.Genres = []string{catalog.GenreUnspecified}
		metrics.ObserveEnrich("failed")
		return false
	}
	item.Genres = genres
	metrics.ObserveEnrich("ok")
	return true
}

func (e *Enricher) fetchGenres(ctx context.Context, detailURL string) ([]string, error) {
	req := catalog.FetchRequest{URL: detailURL, Headers: e.cfg.Headers, Timeout: e.cfg.Timeout}
	for attempt := 1; ; attempt++ {
		resp, err := e.fetcher.Fetch(ctx, req)
		if err == nil {
			return ExtractGenres(textenc.Decode(resp.Body, resp.ContentType)), nil
		}
		if attempt >= e.cfg.MaxAttempts || !fault.Is(err, fault.KindTransient) {
			return nil, fmt.Errorf("fetch detail page (attempt %d): %w", attempt, err)
		}
		wait := time.Duration(attempt) * e.cfg.Backoff
		e.logger.Debug("retrying detail page",
			zap.String("url", detailURL),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		if err := e.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("detail retry wait: %w", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

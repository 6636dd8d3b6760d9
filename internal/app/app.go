// Package app builds and holds the long-lived services of freebie-watch,
// acting as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/bot"
	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/clock/system"
	"github.com/JakeFAU/freebie-watch/internal/config"
	"github.com/JakeFAU/freebie-watch/internal/delivery"
	collyfetcher "github.com/JakeFAU/freebie-watch/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/freebie-watch/internal/fetcher/headless"
	"github.com/JakeFAU/freebie-watch/internal/headless/detector"
	"github.com/JakeFAU/freebie-watch/internal/id/uuid"
	"github.com/JakeFAU/freebie-watch/internal/knownset"
	"github.com/JakeFAU/freebie-watch/internal/listing"
	"github.com/JakeFAU/freebie-watch/internal/policy/ratelimit"
	"github.com/JakeFAU/freebie-watch/internal/policy/simple"
	"github.com/JakeFAU/freebie-watch/internal/presenter"
	"github.com/JakeFAU/freebie-watch/internal/promotion"
	memorypublisher "github.com/JakeFAU/freebie-watch/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/freebie-watch/internal/publisher/pubsub"
	snspublisher "github.com/JakeFAU/freebie-watch/internal/publisher/sns"
	gcsstorage "github.com/JakeFAU/freebie-watch/internal/storage/gcs"
	localstorage "github.com/JakeFAU/freebie-watch/internal/storage/local"
	memorystorage "github.com/JakeFAU/freebie-watch/internal/storage/memory"
	"github.com/JakeFAU/freebie-watch/internal/telegram"
)

// headlessMarkers identify a promotions page whose offers are rendered
// client-side and need the browser path.
var headlessMarkers = []string{"__REACT_QUERY_INITIAL_QUERIES__", "id=\"root\""}

// App holds all the shared, long-lived services for the application.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	clock     *system.Clock
	blobs     catalog.BlobStore
	publisher catalog.Publisher
	telegram  *telegram.Client
	enricher  *listing.Enricher
	delivery  *delivery.Engine
	bot       *bot.Bot

	closers []func() error
}

// Option customizes New.
type Option func(*options)

type options struct {
	transport delivery.Transport
	blobs     catalog.BlobStore
	publisher catalog.Publisher
}

// WithTransport replaces the messaging transport, skipping the Telegram client.
func WithTransport(t delivery.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithBlobStore replaces the configured snapshot backend.
func WithBlobStore(b catalog.BlobStore) Option {
	return func(o *options) { o.blobs = b }
}

// WithPublisher replaces the configured event backend.
func WithPublisher(p catalog.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// New creates and initializes every service from cfg and loads the
// persisted known-sets. It fails fast when a configured backend cannot be
// reached; an unreadable snapshot only logs and starts empty.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	loc := cfg.Location()
	a := &App{cfg: cfg, logger: logger, clock: system.NewInLocation(loc)}
	logger.Info("initializing application services",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("events", cfg.Events.Backend),
		zap.String("timezone", loc.String()))

	var err error
	if a.blobs = o.blobs; a.blobs == nil {
		if a.blobs, err = a.setupStorage(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	if a.publisher = o.publisher; a.publisher == nil {
		if a.publisher, err = a.setupPublisher(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	transport := o.transport
	if transport == nil {
		if transport, err = a.setupTransport(); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.delivery = delivery.New(transport, delivery.Config{
		NotificationChatID: cfg.Telegram.NotificationChatID,
		TopicID:            cfg.Telegram.TopicID,
		BaseDelay:          config.Millis(cfg.Telegram.SendBaseDelayMs),
	}, logger.Named("delivery"))

	if err := a.setupBot(ctx, loc); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("application services initialized")
	return a, nil
}

func (a *App) setupStorage(ctx context.Context) (catalog.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		store, err := gcsstorage.Open(ctx, a.cfg.Storage.GCS, a.logger.Named("gcs"))
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.GCS.Bucket))
		return store, nil
	case config.StorageLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.Dir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.Dir))
		return store, nil
	default:
		a.logger.Warn("using in-memory storage backend, known items are lost on restart")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (catalog.Publisher, error) {
	switch a.cfg.Events.Backend {
	case config.EventsPubSub:
		p, err := gcppublisher.New(ctx, a.cfg.Events.PubSub, a.logger.Named("pubsub"))
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		return p, nil
	case config.EventsSNS:
		p, err := snspublisher.New(ctx, a.cfg.Events.SNS, a.logger.Named("sns"))
		if err != nil {
			return nil, fmt.Errorf("sns publisher init failed: %w", err)
		}
		return p, nil
	default:
		a.logger.Debug("no event backend configured, events stay in memory")
		return memorypublisher.New(), nil
	}
}

func (a *App) setupTransport() (delivery.Transport, error) {
	if a.cfg.RequireTelegram() != nil {
		a.logger.Warn("no bot token configured, messages are written to the log")
		return delivery.NewLogTransport(a.logger.Named("outbox")), nil
	}
	client, err := telegram.New(telegram.Config{
		Token:       a.cfg.Telegram.Token,
		APIEndpoint: a.cfg.Telegram.APIEndpoint,
		PollTimeout: config.Seconds(a.cfg.Telegram.PollTimeoutSeconds),
		RetryDelay:  config.Millis(a.cfg.Telegram.RetryDelayMs),
	}, a.logger.Named("telegram"))
	if err != nil {
		return nil, fmt.Errorf("telegram client init failed: %w", err)
	}
	a.telegram = client
	a.logger.Info("telegram client ready", zap.String("username", client.Username()))
	return client, nil
}

// setupFetchers returns the catalog fetcher and the storefront fetcher.
func (a *App) setupFetchers() (catalog.Fetcher, catalog.Fetcher, error) {
	var limiter collyfetcher.Limiter = simple.New()
	if a.cfg.HTTP.RatePerSecond > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.HTTP.RatePerSecond,
			DefaultBurst: a.cfg.HTTP.Burst,
		})
		a.logger.Info("rate limiter enabled",
			zap.Float64("rps", a.cfg.HTTP.RatePerSecond),
			zap.Int("burst", a.cfg.HTTP.Burst))
	}
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.HTTP.UserAgent,
		RespectRobots: a.cfg.HTTP.RespectRobots,
		Timeout:       config.Seconds(a.cfg.Catalog.TimeoutSeconds),
		Headers:       listing.DefaultHeaders(),
	}, collyfetcher.WithLimiter(limiter))

	if !a.cfg.Headless.Enabled {
		return probe, probe, nil
	}
	var rendered catalog.Fetcher
	browser, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.cfg.HTTP.UserAgent,
		NavigationTimeout: config.Seconds(a.cfg.Headless.NavTimeoutSec),
		ExecPath:          a.cfg.Headless.ExecPath,
	})
	if err != nil {
		a.logger.Warn("headless fetcher init failed, promotions page uses the plain fetch", zap.Error(err))
		rendered = headlessfetcher.NewNoop()
	} else {
		a.closers = append(a.closers, func() error { browser.Close(); return nil })
		rendered = browser
	}
	detect := detector.NewHeuristic(a.cfg.Headless.PromotionThresh, headlessMarkers...)
	a.logger.Info("headless fetcher enabled for promotions", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
	return probe, headlessfetcher.NewEscalating(probe, rendered, detect, a.logger.Named("escalate")), nil
}

func (a *App) setupBot(ctx context.Context, loc *time.Location) error {
	catalogFetcher, storeFetcher, err := a.setupFetchers()
	if err != nil {
		return err
	}

	extractor, err := listing.NewExtractor(a.cfg.Catalog.BaseURL, a.clock, a.logger.Named("extractor"))
	if err != nil {
		return fmt.Errorf("listing extractor init failed: %w", err)
	}
	source := listing.NewSource(a.cfg.Catalog.BaseURL, catalogFetcher, extractor,
		config.Seconds(a.cfg.Catalog.TimeoutSeconds), a.logger.Named("listings"))
	a.enricher = listing.NewEnricher(catalogFetcher, listing.EnricherConfig{
		Stagger:     config.Millis(a.cfg.Enrich.StaggerMs),
		MaxAttempts: a.cfg.Enrich.MaxAttempts,
		Backoff:     config.Millis(a.cfg.Enrich.BackoffMs),
		Timeout:     config.Seconds(a.cfg.Enrich.TimeoutSeconds),
		Headers:     listing.DefaultHeaders(),
	}, a.logger.Named("enricher"))

	store := promotion.Storefront{
		BaseURL: a.cfg.Promotions.StoreURL,
		Locale:  a.cfg.Promotions.Locale,
		Country: a.cfg.Promotions.Country,
	}
	var api *promotion.APIClient
	if a.cfg.Promotions.APIEnabled {
		api = promotion.NewAPIClient(a.cfg.Promotions.APIEndpoint, store, a.cfg.HTTP.UserAgent,
			config.Seconds(a.cfg.Promotions.PageTimeoutSeconds))
	}
	promotions := promotion.NewExtractor(api, storeFetcher, store, a.clock, a.logger.Named("promotions"),
		promotion.WithPageTimeout(config.Seconds(a.cfg.Promotions.PageTimeoutSeconds)))

	listingStore := knownset.NewListingStore(a.blobs, a.cfg.Storage.ListingsObject, loc, a.logger.Named("known_listings"))
	promotionStore := knownset.NewPromotionStore(a.blobs, a.cfg.Storage.PromotionsObject, a.logger.Named("known_promotions"))
	if err := listingStore.Load(ctx); err != nil {
		a.logger.Error("listing snapshot unreadable, starting empty", zap.Error(err))
	}
	if err := promotionStore.Load(ctx); err != nil {
		a.logger.Error("promotion snapshot unreadable, starting empty", zap.Error(err))
	}

	a.bot, err = bot.New(bot.Deps{
		Listings:       source,
		Enricher:       a.enricher,
		Promotions:     promotions,
		ListingStore:   listingStore,
		PromotionStore: promotionStore,
		Delivery:       a.delivery,
		Sessions:       presenter.NewSessions(),
		Publisher:      a.publisher,
		IDs:            uuid.New(),
		Clock:          a.clock,
	}, bot.Config{
		SiteName:       a.cfg.Catalog.SiteName,
		Schedule:       a.cfg.Schedule.Spec,
		CheckLimit:     a.cfg.Catalog.CheckLimit,
		RecentLimit:    a.cfg.Catalog.RecentLimit,
		ListAttempts:   a.cfg.Catalog.ListAttempts,
		AnnounceChecks: a.cfg.Schedule.AnnounceChecks,
		EventTopic:     a.cfg.Events.Topic,
		Location:       loc,
	}, a.logger.Named("bot"))
	if err != nil {
		return fmt.Errorf("bot init failed: %w", err)
	}
	return nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// GetLogger returns the shared logger.
func (a *App) GetLogger() *zap.Logger { return a.logger }

// Bot returns the command and check surface.
func (a *App) Bot() *bot.Bot { return a.bot }

// Telegram returns the bot API client, nil when running without a token.
func (a *App) Telegram() *telegram.Client { return a.telegram }

// Publisher returns the event publisher.
func (a *App) Publisher() catalog.Publisher { return a.publisher }

// Clock returns the app clock.
func (a *App) Clock() catalog.Clock { return a.clock }

// Close waits for background enrichment and releases cloud clients.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if a.enricher != nil {
		a.enricher.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing services", zap.Error(err))
	}
	_ = a.logger.Sync()
}

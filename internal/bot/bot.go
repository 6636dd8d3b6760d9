// Package bot wires extraction, change detection and delivery into the chat
// command surface and the scheduled checks.
package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/delivery"
	"github.com/JakeFAU/freebie-watch/internal/knownset"
	"github.com/JakeFAU/freebie-watch/internal/listing"
	"github.com/JakeFAU/freebie-watch/internal/presenter"
)

// ListingSource reads one catalog page.
type ListingSource interface {
	Latest(ctx context.Context, page, limit int) ([]catalog.Listing, error)
}

// Enricher resolves listing genres in the background.
type Enricher interface {
	Enrich(ctx context.Context, listings []catalog.Listing, onComplete func([]catalog.Listing, listing.EnrichStats))
}

// PromotionSource reports the storefront offers that are free right now.
type PromotionSource interface {
	CurrentlyFree(ctx context.Context) []catalog.Promotion
}

// Config tunes the bot.
type Config struct {
	// SiteName is the catalog host shown in messages.
	SiteName string
	// Schedule is the cron expression shown in /start.
	Schedule string
	// CheckLimit is how many catalog entries a check or /games reads.
	CheckLimit int
	// RecentLimit is how many stored listings /newgames pages through.
	RecentLimit int
	// ListAttempts bounds delivery attempts for paginated cards.
	ListAttempts int
	// AnnounceChecks sends start and finish notices for every check.
	AnnounceChecks bool
	// EventTopic overrides the publisher's default topic.
	EventTopic string
	Location   *time.Location
}

func (c Config) withDefaults() Config {
	if c.SiteName == "" {
		c.SiteName = "freetp.org"
	}
	if c.CheckLimit <= 0 {
		c.CheckLimit = 10
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = 5
	}
	if c.ListAttempts <= 0 {
		c.ListAttempts = 5
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Deps are the collaborators a Bot needs. Publisher may be nil.
type Deps struct {
	Listings       ListingSource
	Enricher       Enricher
	Promotions     PromotionSource
	ListingStore   *knownset.ListingStore
	PromotionStore *knownset.PromotionStore
	Delivery       *delivery.Engine
	Sessions       *presenter.Sessions
	Publisher      catalog.Publisher
	IDs            catalog.IDGenerator
	Clock          catalog.Clock
}

// Bot handles chat updates and runs checks.
type Bot struct {
	Deps
	cfg    Config
	logger *zap.Logger
}

// New validates deps and builds a Bot.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Bot, error) {
	switch {
	case deps.Listings == nil:
		return nil, errors.New("bot: listing source is required")
	case deps.Promotions == nil:
		return nil, errors.New("bot: promotion source is required")
	case deps.ListingStore == nil || deps.PromotionStore == nil:
		return nil, errors.New("bot: known-set stores are required")
	case deps.Delivery == nil:
		return nil, errors.New("bot: delivery engine is required")
	case deps.IDs == nil || deps.Clock == nil:
		return nil, errors.New("bot: id generator and clock are required")
	}
	if deps.Sessions == nil {
		deps.Sessions = presenter.NewSessions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{Deps: deps, cfg: cfg.withDefaults(), logger: logger}, nil
}

// LatestListings returns up to n stored listings, most recently updated first.
func (b *Bot) LatestListings(n int) []catalog.Listing {
	return b.ListingStore.LatestByUpdateRecency(n)
}

// ActivePromotions returns the stored offers that have not ended.
func (b *Bot) ActivePromotions() []catalog.Promotion {
	return b.PromotionStore.Active(b.Clock.Now())
}

// Check runs the check for kind.
func (b *Bot) Check(ctx context.Context, kind catalog.CheckKind) (catalog.CheckReport, error) {
	switch kind {
	case catalog.CheckListings:
		return b.CheckListings(ctx), nil
	case catalog.CheckPromotions:
		return b.CheckPromotions(ctx), nil
	default:
		return catalog.CheckReport{}, errUnknownKind
	}
}

// RunScheduled runs both checks in turn. It is the cron job body.
func (b *Bot) RunScheduled(ctx context.Context) {
	b.CheckListings(ctx)
	if ctx.Err() != nil {
		return
	}
	b.CheckPromotions(ctx)
}

var errUnknownKind = errors.New("unknown check kind")

// IsUnknownKind reports whether err came from Check with an unsupported kind.
func IsUnknownKind(err error) bool {
	return errors.Is(err, errUnknownKind)
}

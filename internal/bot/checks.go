package bot

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/delivery"
	"github.com/JakeFAU/freebie-watch/internal/listing"
	"github.com/JakeFAU/freebie-watch/internal/metrics"
	"github.com/JakeFAU/freebie-watch/internal/render"
)

func (b *Bot) newReport(kind catalog.CheckKind) catalog.CheckReport {
	runID, err := b.IDs.NewID()
	if err != nil {
		b.logger.Warn("run id generation failed", zap.Error(err))
	}
	return catalog.CheckReport{
		RunID:     runID,
		Kind:      kind,
		StartedAt: b.Clock.Now().In(b.cfg.Location),
		NewIDs:    []string{},
	}
}

func (b *Bot) finish(report *catalog.CheckReport) {
	report.FinishedAt = b.Clock.Now().In(b.cfg.Location)
	status := "ok"
	if report.Error != "" {
		status = "error"
	}
	metrics.ObserveCheck(string(report.Kind), status, len(report.NewIDs))
	b.logger.Info("check finished",
		zap.String("run_id", report.RunID),
		zap.String("kind", string(report.Kind)),
		zap.Int("found", report.Found),
		zap.Int("new", len(report.NewIDs)),
		zap.String("error", report.Error))
}

// notify sends a check notice to the notification chat, if one is configured.
// Failure notices go out even when routine announcements are off.
func (b *Bot) notify(ctx context.Context, text string, failure bool) {
	chat := b.Delivery.NotificationChatID()
	if chat == 0 || (!b.cfg.AnnounceChecks && !failure) {
		return
	}
	b.Delivery.Send(ctx, chat, text, delivery.Options{ParseMode: render.ParseModeHTML}, delivery.DefaultMaxAttempts)
}

// CheckListings reads the first catalog page, announces listings not seen
// before and records them. Enrichment of new and still-pending listings
// continues in the background.
func (b *Bot) CheckListings(ctx context.Context) catalog.CheckReport {
	report := b.newReport(catalog.CheckListings)
	logger := b.logger.With(zap.String("run_id", report.RunID), zap.String("kind", string(report.Kind)))
	b.notify(ctx, render.CheckStarted(report.Kind, report.StartedAt), false)

	found, err := b.Listings.Latest(ctx, 1, b.cfg.CheckLimit)
	if err != nil {
		logger.Error("listing check failed", zap.Error(err))
		report.Error = err.Error()
		b.finish(&report)
		b.notify(ctx, render.CheckFinished(report), true)
		return report
	}
	report.Found = len(found)

	fresh := b.ListingStore.DiffNew(found)
	for _, l := range fresh {
		report.NewIDs = append(report.NewIDs, l.ID)
	}
	if _, err := b.ListingStore.UpsertAll(ctx, fresh); err != nil {
		logger.Warn("new listings kept in memory only", zap.Error(err))
	}
	b.finish(&report)
	b.notify(ctx, render.CheckFinished(report), false)

	if chat := b.Delivery.NotificationChatID(); chat != 0 {
		for _, l := range fresh {
			ok := b.Delivery.SendWithFallback(ctx, chat, render.NewListing(l, b.cfg.SiteName),
				delivery.Options{ParseMode: render.ParseModeHTML}, delivery.DefaultMaxAttempts,
				render.MinimalListing(l))
			if !ok {
				logger.Warn("new listing notification dropped", zap.String("listing_id", l.ID))
			}
		}
	} else if len(fresh) > 0 {
		logger.Info("notification chat not configured, new listings not announced", zap.Int("new", len(fresh)))
	}
	for i := range fresh {
		b.publish(ctx, catalog.Event{Type: catalog.EventListingNew, RunID: report.RunID, OccurredAt: report.FinishedAt, Listing: &fresh[i]})
	}

	b.enrich(ctx, appendPending(fresh, b.ListingStore.Pending()))
	return report
}

// CheckPromotions drops expired offers, reads the currently free ones and
// announces those not seen before.
func (b *Bot) CheckPromotions(ctx context.Context) catalog.CheckReport {
	report := b.newReport(catalog.CheckPromotions)
	logger := b.logger.With(zap.String("run_id", report.RunID), zap.String("kind", string(report.Kind)))

	if removed, err := b.PromotionStore.CleanExpired(ctx, b.Clock.Now()); err != nil {
		logger.Warn("expired promotions removed in memory only", zap.Error(err))
	} else if removed > 0 {
		logger.Info("expired promotions removed", zap.Int("removed", removed))
	}

	found := b.Promotions.CurrentlyFree(ctx)
	report.Found = len(found)
	fresh := b.PromotionStore.DiffNew(found)
	for _, p := range fresh {
		report.NewIDs = append(report.NewIDs, p.ID)
	}
	if _, err := b.PromotionStore.UpsertAll(ctx, fresh); err != nil {
		logger.Warn("new promotions kept in memory only", zap.Error(err))
	}
	b.finish(&report)

	if chat := b.Delivery.NotificationChatID(); chat != 0 {
		for _, p := range fresh {
			ok := b.Delivery.SendWithFallback(ctx, chat, render.NewPromotion(p, b.cfg.Location),
				delivery.Options{ParseMode: render.ParseModeHTML}, delivery.DefaultMaxAttempts,
				render.MinimalPromotion(p))
			if !ok {
				logger.Warn("new promotion notification dropped", zap.String("promotion_id", p.ID))
			}
		}
	}
	for i := range fresh {
		b.publish(ctx, catalog.Event{Type: catalog.EventPromotionNew, RunID: report.RunID, OccurredAt: report.FinishedAt, Promotion: &fresh[i]})
	}
	return report
}

func (b *Bot) publish(ctx context.Context, event catalog.Event) {
	if b.Publisher == nil {
		return
	}
	id, err := b.Publisher.Publish(ctx, b.cfg.EventTopic, event)
	if err != nil {
		b.logger.Warn("event publish failed", zap.String("type", event.Type), zap.Error(err))
		return
	}
	b.logger.Debug("event published", zap.String("type", event.Type), zap.String("message_id", id))
}

// enrich resolves genres in the background, then stores the result and
// refreshes any open pagination sessions showing those listings.
func (b *Bot) enrich(ctx context.Context, listings []catalog.Listing) {
	if b.Enricher == nil || len(listings) == 0 {
		return
	}
	b.Enricher.Enrich(ctx, listings, func(enriched []catalog.Listing, stats listing.EnrichStats) {
		if _, err := b.ListingStore.UpsertAll(ctx, enriched); err != nil {
			b.logger.Warn("enriched listings kept in memory only", zap.Error(err))
		}
		b.Sessions.Refresh(enriched)
		b.logger.Info("listing genres updated",
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("failed", stats.Failed))
	})
}

// rememberShown records listings a user was shown. Known listings keep
// their resolved genres so a fresh scrape does not reset them to pending.
func (b *Bot) rememberShown(ctx context.Context, shown []catalog.Listing) []catalog.Listing {
	merged := make([]catalog.Listing, len(shown))
	for i, l := range shown {
		if known, ok := b.ListingStore.Get(l.ID); ok && l.Pending() && !known.Pending() {
			l.Genres = slices.Clone(known.Genres)
		}
		merged[i] = l
	}
	if _, err := b.ListingStore.UpsertAll(ctx, merged); err != nil {
		b.logger.Warn("shown listings kept in memory only", zap.Error(err))
	}
	return merged
}

func appendPending(fresh, pending []catalog.Listing) []catalog.Listing {
	out := slices.Clone(fresh)
	seen := make(map[string]struct{}, len(fresh))
	for _, l := range fresh {
		seen[l.ID] = struct{}{}
	}
	for _, l := range pending {
		if _, ok := seen[l.ID]; !ok {
			seen[l.ID] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}

package knownset

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

// PromotionStore persists the storefront offers already announced.
type PromotionStore struct {
	*Store[catalog.Promotion]
}

// NewPromotionStore returns a store reading and writing path through blobs.
func NewPromotionStore(blobs catalog.BlobStore, path string, logger *zap.Logger) *PromotionStore {
	if path == "" {
		path = PromotionsObject
	}
	return &PromotionStore{Store: newStore(blobs, path, decodePromotion, logger)}
}

func decodePromotion(raw json.RawMessage) (catalog.Promotion, bool) {
	var p catalog.Promotion
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
		return catalog.Promotion{}, false
	}
	p.Title = mapLegacy(p.Title)
	return p, true
}

// Active returns stored offers that have not ended by now.
func (s *PromotionStore) Active(now time.Time) []catalog.Promotion {
	var out []catalog.Promotion
	for _, p := range s.All() {
		if !p.EndDate.Before(now) {
			out = append(out, p)
		}
	}
	return out
}

// CleanExpired drops offers that ended before now. The snapshot is rewritten
// only when something was removed.
func (s *PromotionStore) CleanExpired(ctx context.Context, now time.Time) (int, error) {
	removed := s.set.RemoveFunc(func(p catalog.Promotion) bool {
		return p.EndDate.Before(now)
	})
	if removed == 0 {
		return 0, nil
	}
	s.logger.Info("expired promotions removed", zap.Int("removed", removed))
	if err := s.Save(ctx); err != nil {
		s.logger.Error("snapshot save failed", zap.Error(err))
		return removed, fmt.Errorf("clean expired: %w", err)
	}
	return removed, nil
}

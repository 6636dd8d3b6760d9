package knownset

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/listing"
)

// Default snapshot object names, shared with earlier releases.
const (
	ListingsObject   = "games.json"
	PromotionsObject = "epic-games.json"
)

// Sentinels written by earlier releases.
var legacySentinels = map[string]string{
	"Загрузка...":     catalog.GenrePending,
	"Не указано":      catalog.GenreUnspecified,
	"Неизвестно":      catalog.AuthorUnknown,
	"Дата не указана": catalog.UpdateDateUnknown,
	"Без названия":    catalog.TitleUntitled,
}

func mapLegacy(s string) string {
	if mapped, ok := legacySentinels[s]; ok {
		return mapped
	}
	return s
}

// ListingStore persists the catalog listings already announced.
type ListingStore struct {
	*Store[catalog.Listing]
	loc *time.Location
}

// NewListingStore returns a store reading and writing path through blobs.
// loc interprets the catalog's local date text when ordering by recency.
func NewListingStore(blobs catalog.BlobStore, path string, loc *time.Location, logger *zap.Logger) *ListingStore {
	if path == "" {
		path = ListingsObject
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ListingStore{
		Store: newStore(blobs, path, decodeListing, logger),
		loc:   loc,
	}
}

type listingRecord struct {
	catalog.Listing
	Category string `json:"category"`
}

// decodeListing migrates older records: a lone category becomes the genre
// list and a record with neither is unspecified.
func decodeListing(raw json.RawMessage) (catalog.Listing, bool) {
	var rec listingRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec.ID == "" {
		return catalog.Listing{}, false
	}
	l := rec.Listing
	genres := make([]string, 0, len(l.Genres))
	for _, g := range l.Genres {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, mapLegacy(g))
		}
	}
	if len(genres) == 0 {
		if c := strings.TrimSpace(rec.Category); c != "" {
			genres = []string{mapLegacy(c)}
		} else {
			genres = []string{catalog.GenreUnspecified}
		}
	}
	l.Genres = genres
	l.Author = mapLegacy(l.Author)
	l.UpdateDate = mapLegacy(l.UpdateDate)
	l.PublishDate = mapLegacy(l.PublishDate)
	l.Title = mapLegacy(l.Title)
	return l, true
}

// LatestByUpdateRecency returns up to n listings, most recently updated
// first. Date text that cannot be parsed sorts last, keeping stored order.
func (s *ListingStore) LatestByUpdateRecency(n int) []catalog.Listing {
	all := s.All()
	keys := make(map[string]time.Time, len(all))
	for _, l := range all {
		keys[l.ID] = listing.ParseDateText(l.UpdateDate, s.loc)
	}
	slices.SortStableFunc(all, func(a, b catalog.Listing) int {
		return keys[b.ID].Compare(keys[a.ID])
	})
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Pending returns stored listings whose genres were never resolved.
func (s *ListingStore) Pending() []catalog.Listing {
	var out []catalog.Listing
	for _, l := range s.All() {
		if l.Pending() {
			out = append(out, l)
		}
	}
	return out
}

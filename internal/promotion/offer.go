package promotion

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

// element is one storefront catalog entry as the backend serializes it.
type element struct {
	ID                   string            `json:"id"`
	Namespace            string            `json:"namespace"`
	OfferID              string            `json:"offerId"`
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	ShortDescription     string            `json:"shortDescription"`
	ProductSlug          string            `json:"productSlug"`
	URLSlug              string            `json:"urlSlug"`
	CatalogNs            catalogNamespace  `json:"catalogNs"`
	CustomAttributes     []customAttribute `json:"customAttributes"`
	KeyImages            []keyImage        `json:"keyImages"`
	Price                price             `json:"price"`
	Promotions           promotions        `json:"promotions"`
	Publisher            namedEntity       `json:"publisher"`
	Seller               namedEntity       `json:"seller"`
	PublisherDisplayName string            `json:"publisherDisplayName"`
	DeveloperDisplayName string            `json:"developerDisplayName"`
}

type catalogNamespace struct {
	Mappings []struct {
		PageSlug string `json:"pageSlug"`
	} `json:"mappings"`
}

type customAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type keyImage struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type namedEntity struct {
	Name string `json:"name"`
}

type price struct {
	TotalPrice struct {
		OriginalPrice float64 `json:"originalPrice"`
		DiscountPrice float64 `json:"discountPrice"`
		CurrencyCode  string  `json:"currencyCode"`
		CurrencyInfo  struct {
			Decimals int `json:"decimals"`
		} `json:"currencyInfo"`
	} `json:"totalPrice"`
}

type promotions struct {
	PromotionalOffers         []offerGroup `json:"promotionalOffers"`
	UpcomingPromotionalOffers []offerGroup `json:"upcomingPromotionalOffers"`
}

type offerGroup struct {
	PromotionalOffers []offer `json:"promotionalOffers"`
}

type offer struct {
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	DiscountSetting struct {
		DiscountType       string   `json:"discountType"`
		DiscountPercentage *float64 `json:"discountPercentage"`
	} `json:"discountSetting"`
}

// imageRolePriority lists key image roles from most to least preferred.
var imageRolePriority = []string{"OfferImageWide", "OfferImageTall", "Thumbnail"}

const defaultCurrency = "RUB"

// decodeElements unmarshals each raw element on its own so one malformed
// entry does not hide the rest. It returns the number of entries skipped.
func decodeElements(raw []json.RawMessage) ([]element, int) {
	out := make([]element, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var el element
		if err := json.Unmarshal(r, &el); err != nil {
			skipped++
			continue
		}
		out = append(out, el)
	}
	return out, skipped
}

// activeFreeOffer returns the first current or upcoming offer whose window
// contains now and which takes the whole price off. The backend encodes that
// as a PERCENTAGE discount with discountPercentage 0.
func (el element) activeFreeOffer(now time.Time) (offer, bool) {
	groups := make([]offerGroup, 0, 2)
	if len(el.Promotions.PromotionalOffers) > 0 {
		groups = append(groups, el.Promotions.PromotionalOffers[0])
	}
	if len(el.Promotions.UpcomingPromotionalOffers) > 0 {
		groups = append(groups, el.Promotions.UpcomingPromotionalOffers[0])
	}
	for _, g := range groups {
		for _, o := range g.PromotionalOffers {
			if o.free() && !now.Before(o.StartDate) && !now.After(o.EndDate) {
				return o, true
			}
		}
	}
	return offer{}, false
}

func (o offer) free() bool {
	ds := o.DiscountSetting
	return ds.DiscountType == "PERCENTAGE" && ds.DiscountPercentage != nil && *ds.DiscountPercentage == 0
}

func (el element) identity() string {
	for _, id := range []string{el.ID, el.Namespace, el.OfferID} {
		if id != "" {
			return id
		}
	}
	return ""
}

func (el element) attribute(key string) string {
	for _, attr := range el.CustomAttributes {
		if attr.Key == key {
			return attr.Value
		}
	}
	return ""
}

func (el element) slug() string {
	candidates := []string{el.ProductSlug, el.URLSlug}
	if len(el.CatalogNs.Mappings) > 0 {
		candidates = append(candidates, el.CatalogNs.Mappings[0].PageSlug)
	}
	candidates = append(candidates, el.attribute("productSlug"), el.attribute("urlSlug"))
	for _, s := range candidates {
		// The backend uses "[]" as a placeholder slug for bundles.
		if s = strings.TrimSpace(s); s != "" && s != "[]" {
			return s
		}
	}
	return el.identity()
}

func (el element) image() string {
	for _, role := range imageRolePriority {
		for _, img := range el.KeyImages {
			if img.Type == role && img.URL != "" {
				return img.URL
			}
		}
	}
	if len(el.KeyImages) > 0 {
		return el.KeyImages[0].URL
	}
	return ""
}

// originalPrice renders "amount currency", or "" when the item was never paid.
func (el element) originalPrice() string {
	tp := el.Price.TotalPrice
	if tp.OriginalPrice <= 0 {
		return ""
	}
	amount := tp.OriginalPrice
	if d := tp.CurrencyInfo.Decimals; d > 0 {
		amount /= math.Pow10(d)
	}
	currency := tp.CurrencyCode
	if currency == "" {
		currency = defaultCurrency
	}
	return strconv.FormatFloat(amount, 'f', -1, 64) + " " + currency
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// toPromotion builds the domain record for el; ok is false when el is not free now.
func (el element) toPromotion(store Storefront, now time.Time) (catalog.Promotion, bool) {
	o, active := el.activeFreeOffer(now)
	if !active {
		return catalog.Promotion{}, false
	}
	id := el.identity()
	if id == "" {
		return catalog.Promotion{}, false
	}
	return catalog.Promotion{
		ID:            id,
		Title:         firstNonEmpty(strings.TrimSpace(el.Title), catalog.TitleUntitled),
		Namespace:     firstNonEmpty(el.Namespace, id),
		Description:   catalog.TruncateRunes(firstNonEmpty(el.Description, el.ShortDescription), catalog.MaxDescriptionLen),
		ImageURL:      el.image(),
		URL:           store.ProductURL(el.slug()),
		StartDate:     o.StartDate.UTC(),
		EndDate:       o.EndDate.UTC(),
		OriginalPrice: el.originalPrice(),
		Publisher:     firstNonEmpty(el.Publisher.Name, el.attribute("publisherName"), el.PublisherDisplayName),
		Developer:     firstNonEmpty(el.Seller.Name, el.attribute("developerName"), el.DeveloperDisplayName),
	}, true
}

// NextThursday returns the next Thursday 17:00 UTC after now, the storefront's
// usual rotation time. On a Thursday past 17:00 it returns the following week.
func NextThursday(now time.Time) time.Time {
	now = now.UTC()
	days := (int(time.Thursday) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day()+days, 17, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

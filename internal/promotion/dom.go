package promotion

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

const maxCardTitleLen = 200

// cardSelectors locate offer cards, most reliable first.
var cardSelectors = []string{
	`[data-component="FreeOfferCard"]`,
	`[data-testid="offer-card"]`,
	`a[href*="/p/"][aria-label*="Сейчас бесплатно"]`,
	`a[href*="/p/"][aria-label*="Бесплатно"]`,
}

var productPath = regexp.MustCompile(`/p/([^/?#]+)`)

// FromDOM scrapes offer cards from a rendered promotions page.
// The page does not expose when an offer started, so StartDate is now.
func FromDOM(markup string, store Storefront, now time.Time) []catalog.Promotion {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	for _, selector := range cardSelectors {
		var out []catalog.Promotion
		doc.Find(selector).Each(func(_ int, card *goquery.Selection) {
			if p, ok := cardPromotion(card, store, now); ok {
				out = append(out, p)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func cardPromotion(card *goquery.Selection, store Storefront, now time.Time) (catalog.Promotion, bool) {
	link := card
	if !(goquery.NodeName(card) == "a" && strings.Contains(card.AttrOr("href", ""), "/p/")) {
		link = card.Find(`a[href*="/p/"]`).First()
	}
	href := link.AttrOr("href", "")
	m := productPath.FindStringSubmatch(href)
	if m == nil {
		return catalog.Promotion{}, false
	}
	id := m[1]

	end := NextThursday(now)
	if stamp, ok := link.Find("time[datetime]").Last().Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, stamp); err == nil {
			end = t.UTC()
		}
	}
	p := catalog.Promotion{
		ID:          id,
		Title:       catalog.TruncateRunes(cardTitle(link), maxCardTitleLen),
		Namespace:   id,
		Description: catalog.TruncateRunes(catalog.CollapseSpace(link.Find("p").Text()), catalog.MaxDescriptionLen),
		ImageURL:    cardImage(link),
		URL:         store.Absolute(href),
		StartDate:   now.UTC(),
		EndDate:     end,
	}
	return p, p.ActiveAt(now)
}

func cardTitle(link *goquery.Selection) string {
	for _, heading := range []string{"h6", "h3"} {
		if t := catalog.CollapseSpace(link.Find(heading).First().Text()); t != "" {
			return t
		}
	}
	// aria-label reads "Бесплатные игры, 1 из 3, Сейчас бесплатно, <title>, ...".
	if parts := strings.Split(link.AttrOr("aria-label", ""), ","); len(parts) >= 4 {
		if t := strings.TrimSpace(parts[3]); t != "" {
			return t
		}
	}
	return catalog.TitleUntitled
}

func cardImage(link *goquery.Selection) string {
	if lazy := link.Find("img[data-image]").First().AttrOr("data-image", ""); lazy != "" {
		return lazy
	}
	return link.Find("img").First().AttrOr("src", "")
}

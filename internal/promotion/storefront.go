package promotion

import "strings"

// Storefront locates the store's pages for one locale and country.
type Storefront struct {
	BaseURL string
	Locale  string
	Country string
}

// DefaultStorefront is the Russian-locale Epic Games Store.
func DefaultStorefront() Storefront {
	return Storefront{BaseURL: "https://store.epicgames.com", Locale: "ru", Country: "RU"}
}

func (s Storefront) base() string {
	return strings.TrimRight(s.BaseURL, "/")
}

// ProductURL returns the product page for slug.
func (s Storefront) ProductURL(slug string) string {
	return s.base() + "/" + s.Locale + "/p/" + slug
}

// FreeGamesURL returns the promotions landing page.
func (s Storefront) FreeGamesURL() string {
	return s.base() + "/" + s.Locale + "/free-games"
}

// Absolute resolves a site-relative href.
func (s Storefront) Absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return s.base() + href
}

package promotion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/freebie-watch/internal/fault"
)

// DefaultAPIURL is the public free-games promotions endpoint.
const DefaultAPIURL = "https://store-site-backend-static-ipv4.ak.epicgames.com/freeGamesPromotions"

type apiResponse struct {
	Data struct {
		Catalog struct {
			SearchStore struct {
				Elements []json.RawMessage `json:"elements"`
			} `json:"searchStore"`
		} `json:"Catalog"`
	} `json:"data"`
}

// APIClient reads the structured promotions endpoint.
type APIClient struct {
	client   *resty.Client
	endpoint string
	store    Storefront
}

// NewAPIClient builds a client for endpoint with a per-request timeout.
func NewAPIClient(endpoint string, store Storefront, userAgent string, timeout time.Duration) *APIClient {
	if endpoint == "" {
		endpoint = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7").
		SetHeader("Origin", store.BaseURL).
		SetHeader("Referer", store.BaseURL+"/")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &APIClient{client: client, endpoint: endpoint, store: store}
}

// Elements fetches the raw catalog elements for the storefront's locale.
func (c *APIClient) Elements(ctx context.Context) ([]json.RawMessage, error) {
	var out apiResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"locale":         c.store.Locale,
			"country":        c.store.Country,
			"allowCountries": c.store.Country,
		}).
		SetResult(&out).
		Get(c.endpoint)
	if err != nil {
		return nil, fault.FromNetwork("promotions api", err)
	}
	if resp.IsError() {
		return nil, fault.FromStatus("promotions api", resp.StatusCode(),
			fmt.Errorf("promotions api returned %s", resp.Status()))
	}
	if out.Data.Catalog.SearchStore.Elements == nil {
		return nil, fault.Newf(fault.KindExtraction, "promotions api", "response has no catalog elements")
	}
	return out.Data.Catalog.SearchStore.Elements, nil
}

package headless

import (
	"context"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/fault"
)

// Noop is used when headless rendering is disabled.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always fails with a validation fault so callers never retry it.
func (Noop) Fetch(_ context.Context, request catalog.FetchRequest) (catalog.FetchResponse, error) {
	return catalog.FetchResponse{}, fault.Newf(fault.KindValidation, "headless fetch", "headless rendering disabled for %s", request.URL)
}

package headless

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

// Escalating fetches with a plain HTTP probe first and re-fetches through a
// browser when the detector decides the probe is an unrendered shell.
type Escalating struct {
	probe    catalog.Fetcher
	rendered catalog.Fetcher
	detector catalog.HeadlessDetector
	logger   *zap.Logger
}

// NewEscalating wires a probe fetcher, a rendering fetcher, and a detector.
// A nil rendered fetcher or detector disables escalation.
func NewEscalating(probe, rendered catalog.Fetcher, detector catalog.HeadlessDetector, logger *zap.Logger) *Escalating {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Escalating{probe: probe, rendered: rendered, detector: detector, logger: logger}
}

// Fetch returns the probe response unless escalation succeeds.
func (e *Escalating) Fetch(ctx context.Context, request catalog.FetchRequest) (catalog.FetchResponse, error) {
	resp, err := e.probe.Fetch(ctx, request)
	if err != nil {
		return resp, err
	}
	if e.rendered == nil || e.detector == nil || !e.detector.ShouldPromote(resp) {
		return resp, nil
	}
	e.logger.Debug("promoting fetch to headless", zap.String("url", request.URL))
	rendered, err := e.rendered.Fetch(ctx, request)
	if err != nil {
		e.logger.Warn("headless fetch failed; using probe response",
			zap.String("url", request.URL), zap.Error(err))
		return resp, nil
	}
	rendered.UsedHeadless = true
	return rendered, nil
}

// Package detector decides when a fetched page must be rendered in a browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

// Heuristic implements rule-based promotion to headless rendering.
type Heuristic struct {
	BodyLengthThreshold int
	// ContentMarkers prove the page already carries the data we parse.
	// A body containing any of them is never promoted.
	ContentMarkers [][]byte
}

// NewHeuristic creates a new detector. contentMarkers are matched case-sensitively.
func NewHeuristic(threshold int, contentMarkers ...string) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	markers := make([][]byte, 0, len(contentMarkers))
	for _, m := range contentMarkers {
		if m != "" {
			markers = append(markers, []byte(m))
		}
	}
	return &Heuristic{BodyLengthThreshold: threshold, ContentMarkers: markers}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("__NEXT_DATA__"),
	[]byte("__APOLLO_STATE__"),
	[]byte("id=\"dieselReactWrapper\""),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
}

// ShouldPromote reports whether resp looks like an unrendered client-side shell.
func (h *Heuristic) ShouldPromote(resp catalog.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	for _, marker := range h.ContentMarkers {
		if bytes.Contains(body, marker) {
			return false
		}
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script elements cover a quarter of the body.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	for pos := 0; pos < total; {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		end := total
		if gt := strings.IndexByte(lower[start:], '>'); gt != -1 {
			contentStart := start + gt + 1
			if closeRel := strings.Index(lower[contentStart:], closeTag); closeRel != -1 {
				end = contentStart + closeRel + len(closeTag)
			}
		}
		covered += end - start
		pos = end
	}
	return covered*100/total >= 25
}

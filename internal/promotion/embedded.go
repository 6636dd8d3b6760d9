package promotion

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

// stateBlobs are global-state assignments the store page has shipped, most preferred first.
var stateBlobs = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.+?\});?\s*</script>`),
	regexp.MustCompile(`(?s)window\.__APOLLO_STATE__\s*=\s*(\{.+?\});?\s*</script>`),
}

var catalogShapedKeys = []string{"Catalog", "searchStore", "elements"}

// FromEmbeddedJSON finds catalog state embedded in the promotions page and
// applies the active-offer rule to every element it holds.
func FromEmbeddedJSON(markup string, store Storefront, now time.Time) []catalog.Promotion {
	state, ok := embeddedState(markup)
	if !ok {
		return nil
	}
	elements, _ := decodeElements(findElements(state))
	out := make([]catalog.Promotion, 0, len(elements))
	for _, el := range elements {
		if p, ok := el.toPromotion(store, now); ok {
			out = append(out, p)
		}
	}
	return out
}

func embeddedState(markup string) (map[string]any, bool) {
	for _, re := range stateBlobs {
		m := re.FindStringSubmatch(markup)
		if m == nil {
			continue
		}
		var state map[string]any
		if err := json.Unmarshal([]byte(m[1]), &state); err == nil {
			return state, true
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, false
	}
	var found map[string]any
	doc.Find(`script[type="application/json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var candidate map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &candidate); err != nil {
			return true
		}
		for _, key := range catalogShapedKeys {
			if _, ok := candidate[key]; ok {
				found = candidate
				return false
			}
		}
		return true
	})
	return found, found != nil
}

// findElements probes the known nesting paths for an element list, falling
// back to every top-level "<key>.elements" or array-valued field.
func findElements(state map[string]any) []json.RawMessage {
	for _, path := range [][]string{
		{"Catalog", "searchStore", "elements"},
		{"searchStore", "elements"},
		{"elements"},
	} {
		if list, ok := lookup(state, path...).([]any); ok {
			return rawList(list)
		}
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out []json.RawMessage
	for _, k := range keys {
		switch v := state[k].(type) {
		case map[string]any:
			if list, ok := v["elements"].([]any); ok {
				out = append(out, rawList(list)...)
			}
		case []any:
			out = append(out, rawList(v)...)
		}
	}
	return out
}

func lookup(node any, path ...string) any {
	for _, key := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[key]
	}
	return node
}

func rawList(list []any) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(list))
	for _, item := range list {
		if _, ok := item.(map[string]any); !ok {
			continue
		}
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	return out
}

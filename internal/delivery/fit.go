package delivery

import (
	"sort"
	"unicode/utf8"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

// fitMargin is kept free below the limit after truncating the variable part.
const fitMargin = 100

// FitMessage renders the message with the full variable part when the result
// fits within limit characters. Otherwise it keeps the longest prefix of the
// variable part that fits with fitMargin to spare; if the fixed part alone is
// too long, the rendered text itself is cut.
func FitMessage(limit int, variable string, render func(variable string) string) string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	fits := func(s string) bool { return utf8.RuneCountInString(s) <= limit }

	out := render(variable)
	if fits(out) {
		return out
	}

	budget := min(utf8.RuneCountInString(variable), limit-utf8.RuneCountInString(render(""))-fitMargin)
	if budget > 0 {
		// Largest prefix length whose rendering still fits.
		n := sort.Search(budget+1, func(i int) bool {
			return !fits(render(catalog.TruncateRunes(variable, i)))
		}) - 1
		if n > 0 {
			return render(catalog.TruncateRunes(variable, n))
		}
	}
	out = render("")
	if fits(out) {
		return out
	}
	return catalog.TruncateRunes(out, limit)
}

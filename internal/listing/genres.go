package listing

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

var (
	genreLabel         = regexp.MustCompile(`[Жж]анр:\s*`)
	genreContainerScan = regexp.MustCompile(`[Жж]анр[:\s]+([^<.]+?)(?:\.|<!--|$)`)
)

// ExtractGenres reads the genre line of a detail page.
// It returns ["unspecified"] when the page has none.
func ExtractGenres(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return []string{catalog.GenreUnspecified}
	}

	var genres []string
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := p.Text()
		loc := genreLabel.FindStringIndex(text)
		if loc == nil {
			return true
		}
		genres = splitGenres(untilTerminator(text[loc[1]:]))
		return len(genres) == 0
	})
	if len(genres) > 0 {
		return genres
	}

	if m := genreContainerScan.FindStringSubmatch(doc.Find("div.maincont").Text()); m != nil {
		if genres = splitGenres(m[1]); len(genres) > 0 {
			return genres
		}
	}
	return []string{catalog.GenreUnspecified}
}

func untilTerminator(s string) string {
	for _, term := range []string{"<!--", "."} {
		if i := strings.Index(s, term); i >= 0 {
			s = s[:i]
		}
	}
	return s
}

func splitGenres(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		g := catalog.CollapseSpace(part)
		if g == "" || strings.HasPrefix(g, "<!--") {
			continue
		}
		out = append(out, g)
	}
	return out
}

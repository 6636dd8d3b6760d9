// Package listing extracts freeware catalog entries and enriches them with
// genres taken from each entry's detail page.
package listing

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

const (
	blockSelector       = "div.base"
	descriptionSelector = "div.short-story p, div.short-story div.maincont p"
	bylineSelector      = "p.lcol.argcat"
	minDescriptionLen   = 20
)

var (
	idPattern       = regexp.MustCompile(`/(\d+)-`)
	nonDigits       = regexp.MustCompile(`\D+`)
	bylineUserToken = regexp.MustCompile(`user/([^/\s"']+)`)
)

// linkStrategy resolves a title and href for one catalog block.
// ok is false when the strategy found nothing to work with.
type linkStrategy func(block *goquery.Selection) (title, href string, ok bool)

// linkCascade is tried in order; the first strategy that matches wins.
var linkCascade = []linkStrategy{
	selectorLink("div.header-h1 h1 a"),
	selectorLink("div.header-h1 a"),
	selectorLink(".header-h1 a"),
	selectorLink("h1 a"),
	detailPageLink,
	firstLink,
}

// Extractor parses catalog pages into listings.
type Extractor struct {
	base   *url.URL
	clock  catalog.Clock
	logger *zap.Logger
}

// NewExtractor returns an Extractor resolving relative links against baseURL.
func NewExtractor(baseURL string, clock catalog.Clock, logger *zap.Logger) (*Extractor, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{base: base, clock: clock, logger: logger}, nil
}

// Extract returns at most limit listings in document order.
// Blocks without both a title and a link are skipped; nothing here fails.
func (e *Extractor) Extract(markup string, limit int) []catalog.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.logger.Warn("catalog markup unparsable", zap.Error(err))
		return nil
	}
	blocks := doc.Find(blockSelector)
	e.logger.Debug("catalog blocks found", zap.Int("count", blocks.Length()))

	listings := make([]catalog.Listing, 0, min(limit, blocks.Length()))
	blocks.EachWithBreak(func(index int, block *goquery.Selection) bool {
		if len(listings) >= limit {
			return false
		}
		item, err := e.extractBlock(index, block)
		if err != nil {
			e.logger.Debug("skipping catalog block", zap.Int("index", index), zap.Error(err))
			return true
		}
		listings = append(listings, item)
		return true
	})
	return listings
}

func (e *Extractor) extractBlock(index int, block *goquery.Selection) (item catalog.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic extracting block: %v", r)
		}
	}()

	title, href := resolveLink(block)
	title = catalog.CollapseSpace(title)
	if title == "" || href == "" {
		return catalog.Listing{}, fmt.Errorf("missing title or link (title=%q href=%q)", title, href)
	}

	updateDate := catalog.UpdateDateUnknown
	if raw := updateDateText(block); raw != "" {
		updateDate = NormalizeDateText(raw, e.clock.Now())
	}
	author, publishDate := byline(block, updateDate)

	return catalog.Listing{
		ID:          DeriveID(href, index),
		Title:       title,
		URL:         e.absolute(href),
		UpdateDate:  updateDate,
		Description: catalog.TruncateRunes(description(block), catalog.MaxDescriptionLen),
		Genres:      []string{catalog.GenrePending},
		Author:      author,
		PublishDate: publishDate,
	}, nil
}

// DeriveID picks a stable identity for a listing URL.
func DeriveID(href string, index int) string {
	if m := idPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	if digits := nonDigits.ReplaceAllString(href, ""); digits != "" {
		return digits
	}
	return "game-" + strconv.Itoa(index)
}

func resolveLink(block *goquery.Selection) (string, string) {
	for _, strategy := range linkCascade {
		if title, href, ok := strategy(block); ok {
			return strings.TrimSpace(title), strings.TrimSpace(href)
		}
	}
	return "", ""
}

func selectorLink(selector string) linkStrategy {
	return func(block *goquery.Selection) (string, string, bool) {
		link := block.Find(selector).First()
		if link.Length() == 0 {
			return "", "", false
		}
		return link.Text(), link.AttrOr("href", ""), true
	}
}

func detailPageLink(block *goquery.Selection) (string, string, bool) {
	link := block.Find(`a[href*="/po-seti/"], a[href*="/games/"]`).First()
	if link.Length() == 0 {
		return "", "", false
	}
	title := strings.TrimSpace(link.Text())
	if title == "" {
		title = strings.TrimSpace(link.Closest("div.header-h1").Text())
	}
	if title == "" {
		title = strings.TrimSpace(link.Find("h1").Text())
	}
	if title == "" {
		title = strings.TrimSpace(link.SiblingsFiltered("h1").Text())
	}
	return title, link.AttrOr("href", ""), true
}

func firstLink(block *goquery.Selection) (string, string, bool) {
	link := block.Find("a").First()
	if link.Length() == 0 {
		return "", "", false
	}
	title := strings.TrimSpace(link.Text())
	if title == "" {
		title = link.Find("h1").Text()
	}
	return title, link.AttrOr("href", ""), true
}

func updateDateText(block *goquery.Selection) string {
	highlighted := block.Find(`div[style*="background-color: red"], div[style*="background-color:red"]`)
	if text := strings.TrimSpace(highlighted.Find("span, p").First().Text()); text != "" {
		return text
	}
	return strings.TrimSpace(block.Find(`div[style*="red"] span`).Text())
}

func description(block *goquery.Selection) string {
	var found string
	block.Find(descriptionSelector).EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) > minDescriptionLen && !leadingLabelsPattern.MatchString(text) {
			found = catalog.CollapseSpace(text)
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	lines := strings.Split(strings.TrimSpace(block.Find("div.short-story").Text()), "\n")
	for len(lines) > 0 && leadingLabelsPattern.MatchString(strings.TrimSpace(lines[0])) {
		lines = lines[1:]
	}
	return catalog.CollapseSpace(strings.Join(lines, " "))
}

func byline(block *goquery.Selection, updateDate string) (author, publishDate string) {
	author, publishDate = catalog.AuthorUnknown, updateDate
	line := block.Find(bylineSelector)
	text := strings.TrimSpace(line.Text())
	if text == "" {
		return author, publishDate
	}

	if profile := line.Find(`a[href*="/user/"]`).First(); profile.Length() > 0 {
		if name := strings.TrimSpace(profile.Text()); name != "" {
			author = name
		}
	} else if m := bylineUserToken.FindStringSubmatch(text); m != nil {
		author = m[1]
	}
	if date, ok := extractPublishDate(text); ok {
		publishDate = date
	}
	return author, publishDate
}

func (e *Extractor) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return e.base.String() + href
	}
	return e.base.ResolveReference(ref).String()
}

// Package presenter keeps per-chat paging cursors over listing results and
// renders one listing per page with navigation controls.
package presenter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/delivery"
	"github.com/JakeFAU/freebie-watch/internal/render"
)

// Callback data understood by the presenter.
const (
	CallbackPagePrefix = "page_"
	CallbackPageInfo   = "page_info"
)

// Cursor is one chat's position in a result set.
type Cursor struct {
	Items []catalog.Listing
	Index int
}

// Pages returns the page count; one listing per page.
func (c Cursor) Pages() int {
	return len(c.Items)
}

// Current returns the listing on the current page.
func (c Cursor) Current() (catalog.Listing, bool) {
	if c.Index < 0 || c.Index >= len(c.Items) {
		return catalog.Listing{}, false
	}
	return c.Items[c.Index], true
}

// Sessions stores cursors by chat. Cursors live until overwritten.
type Sessions struct {
	mu      sync.RWMutex
	cursors map[int64]Cursor
}

// NewSessions returns an empty session store.
func NewSessions() *Sessions {
	return &Sessions{cursors: make(map[int64]Cursor)}
}

// Open replaces the chat's cursor with items at the first page.
func (s *Sessions) Open(chatID int64, items []catalog.Listing) Cursor {
	c := Cursor{Items: slices.Clone(items)}
	s.mu.Lock()
	s.cursors[chatID] = c
	s.mu.Unlock()
	return c
}

// Get returns the chat's cursor.
func (s *Sessions) Get(chatID int64) (Cursor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cursors[chatID]
	return c, ok
}

// Jump moves the chat's cursor to page. Unknown chats and out-of-range
// pages leave state untouched and report false.
func (s *Sessions) Jump(chatID int64, page int) (Cursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[chatID]
	if !ok || page < 0 || page >= c.Pages() {
		return c, false
	}
	c.Index = page
	s.cursors[chatID] = c
	return c, true
}

// Refresh replaces listings in every cursor that holds one with the same id.
// Enrichment uses it so paging shows resolved genres.
func (s *Sessions) Refresh(updated []catalog.Listing) {
	byID := make(map[string]catalog.Listing, len(updated))
	for _, l := range updated {
		byID[l.ID] = l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for chat, c := range s.cursors {
		var items []catalog.Listing
		for i, item := range c.Items {
			if l, ok := byID[item.ID]; ok {
				if items == nil {
					// Readers may hold the old slice.
					items = slices.Clone(c.Items)
				}
				items[i] = l
			}
		}
		if items != nil {
			c.Items = items
			s.cursors[chat] = c
		}
	}
}

// Render formats the cursor's current page, fitted to the message limit.
func Render(c Cursor) string {
	item, ok := c.Current()
	if !ok {
		return render.NotFound
	}
	footer := render.PageFooter(c.Index, c.Pages())
	return delivery.FitMessage(delivery.MaxMessageLength, item.Description, func(description string) string {
		shown := item
		shown.Description = description
		return render.Listing(shown) + footer
	})
}

// RenderPlain formats the current page without markup.
func RenderPlain(c Cursor) string {
	item, ok := c.Current()
	if !ok {
		return render.NotFound
	}
	return render.PlainListing(item) + render.PageFooter(c.Index, c.Pages())
}

// Controls builds the navigation row: previous when a page exists before,
// a page indicator, and next when a page exists after.
func Controls(c Cursor) delivery.Keyboard {
	total := c.Pages()
	row := make([]delivery.Button, 0, 3)
	if c.Index > 0 {
		row = append(row, delivery.Button{Text: "◀️ Назад", Data: pageData(c.Index - 1)})
	}
	row = append(row, delivery.Button{Text: fmt.Sprintf("%d/%d", c.Index+1, total), Data: CallbackPageInfo})
	if c.Index < total-1 {
		row = append(row, delivery.Button{Text: "Вперёд ▶️", Data: pageData(c.Index + 1)})
	}
	return delivery.Keyboard{row}
}

func pageData(page int) string {
	return CallbackPagePrefix + strconv.Itoa(page)
}

// ParseCallback decodes callback data. info is true for the page indicator;
// ok is false for data the presenter does not own.
func ParseCallback(data string) (page int, info, ok bool) {
	if data == CallbackPageInfo {
		return 0, true, true
	}
	raw, found := strings.CutPrefix(data, CallbackPagePrefix)
	if !found {
		return 0, false, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, false
	}
	return n, false, true
}

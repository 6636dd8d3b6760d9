// Package catalog defines the domain types shared across the watcher subsystems.
package catalog

import (
	"net/http"
	"slices"
	"time"
)

// Sentinel values stored in place of missing listing metadata.
const (
	GenrePending      = "pending"
	GenreUnspecified  = "unspecified"
	AuthorUnknown     = "unknown"
	UpdateDateUnknown = "unknown date"
	TitleUntitled     = "untitled"
)

// MaxDescriptionLen caps listing and promotion descriptions, in runes.
const MaxDescriptionLen = 500

// Listing is one entry of the freeware catalog.
// Field names on the wire match the snapshot files written by earlier releases.
type Listing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	UpdateDate  string   `json:"updateDate"`
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	Author      string   `json:"author"`
	PublishDate string   `json:"publishDate"`
}

// Key returns the identity used by known-sets.
func (l Listing) Key() string { return l.ID }

// Pending reports whether enrichment has not yet resolved the genres.
func (l Listing) Pending() bool {
	return len(l.Genres) == 0 || slices.Contains(l.Genres, GenrePending)
}

// Clone returns a copy that shares no slices with l.
func (l Listing) Clone() Listing {
	l.Genres = slices.Clone(l.Genres)
	return l
}

// Promotion is one storefront offer that is free for a bounded window.
type Promotion struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Namespace     string    `json:"namespace"`
	Description   string    `json:"description"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	URL           string    `json:"url"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	OriginalPrice string    `json:"originalPrice,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	Developer     string    `json:"developer,omitempty"`
}

// Key returns the identity used by known-sets.
func (p Promotion) Key() string { return p.ID }

// ActiveAt reports whether now falls inside the free window, inclusive.
func (p Promotion) ActiveAt(now time.Time) bool {
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
}

// FetchResponse contains the fetched body plus metadata.
// ContentType is the header as the origin declared it, before any transcoding.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	ContentType  string
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// CheckKind names the source a recheck ran against.
type CheckKind string

// Recheck sources.
const (
	CheckListings   CheckKind = "listings"
	CheckPromotions CheckKind = "promotions"
)

// CheckReport summarizes one recheck run.
type CheckReport struct {
	RunID      string    `json:"run_id"`
	Kind       CheckKind `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Found      int       `json:"found"`
	NewIDs     []string  `json:"new_ids"`
	Error      string    `json:"error,omitempty"`
}

// Event is published for every newly detected item.
type Event struct {
	Type       string     `json:"type"`
	RunID      string     `json:"run_id"`
	OccurredAt time.Time  `json:"occurred_at"`
	Listing    *Listing   `json:"listing,omitempty"`
	Promotion  *Promotion `json:"promotion,omitempty"`
}

// Event types.
const (
	EventListingNew   = "listing.new"
	EventPromotionNew = "promotion.new"
)

// EventType reports the event type for transport attributes.
func (e Event) EventType() string { return e.Type }

package catalog

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by BlobStore.GetObject for missing paths.
var ErrObjectNotFound = errors.New("object not found")

// Fetcher fetches a URL and returns the raw body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a rendered fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// BlobStore reads and writes whole snapshot objects.
type BlobStore interface {
	GetObject(ctx context.Context, path string) ([]byte, error)
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes new-item events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

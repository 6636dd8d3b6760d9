package knownset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
	"github.com/JakeFAU/freebie-watch/internal/fault"
	"github.com/JakeFAU/freebie-watch/internal/hash/sha256"
)

const snapshotContentType = "application/json"

// decodeFunc turns one raw snapshot record into an item; ok is false to skip it.
type decodeFunc[T Keyed] func(raw json.RawMessage) (item T, ok bool)

// Store is a Set persisted as a JSON array snapshot.
// A nil BlobStore keeps the set in memory only.
type Store[T Keyed] struct {
	set    *Set[T]
	blobs  catalog.BlobStore
	path   string
	decode decodeFunc[T]
	logger *zap.Logger
	hasher *sha256.Hasher

	saveMu     sync.Mutex
	lastDigest string
}

func newStore[T Keyed](blobs catalog.BlobStore, path string, decode decodeFunc[T], logger *zap.Logger) *Store[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store[T]{
		set:    New[T](),
		blobs:  blobs,
		path:   path,
		decode: decode,
		logger: logger.With(zap.String("snapshot", path)),
		hasher: sha256.New(),
	}
}

// Load replaces the in-memory set with the persisted snapshot. A missing
// snapshot starts empty. Undecodable records are skipped; an unreadable
// snapshot leaves the set empty and returns a persistence error.
func (s *Store[T]) Load(ctx context.Context) error {
	if s.blobs == nil {
		return nil
	}
	data, err := s.blobs.GetObject(ctx, s.path)
	if errors.Is(err, catalog.ErrObjectNotFound) {
		s.logger.Info("no snapshot yet, starting empty")
		s.set.Replace(nil)
		return nil
	}
	if err != nil {
		s.set.Replace(nil)
		return fault.New(fault.KindPersistence, "load "+s.path, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		s.set.Replace(nil)
		return fault.New(fault.KindPersistence, "decode "+s.path, err)
	}
	items := make([]T, 0, len(records))
	skipped := 0
	for _, raw := range records {
		item, ok := s.decode(raw)
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
	}
	s.set.Replace(items)
	s.logger.Info("snapshot loaded", zap.Int("items", len(items)), zap.Int("skipped", skipped))
	return nil
}

// Save rewrites the whole snapshot from the current set. A snapshot identical
// to the last one written is not rewritten.
func (s *Store[T]) Save(ctx context.Context) error {
	if s.blobs == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	data, err := json.MarshalIndent(s.set.All(), "", "  ")
	if err != nil {
		return fault.New(fault.KindPersistence, "encode "+s.path, err)
	}
	digest := s.hasher.Hash(data)
	if digest == s.lastDigest {
		s.logger.Debug("snapshot unchanged, write skipped")
		return nil
	}
	if _, err := s.blobs.PutObject(ctx, s.path, snapshotContentType, bytes.NewReader(data)); err != nil {
		return fault.New(fault.KindPersistence, "save "+s.path, err)
	}
	s.lastDigest = digest
	return nil
}

// UpsertAll records items and persists the snapshot. The in-memory set is
// updated even when the save fails.
func (s *Store[T]) UpsertAll(ctx context.Context, items []T) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	added := s.set.UpsertAll(items)
	if err := s.Save(ctx); err != nil {
		s.logger.Error("snapshot save failed", zap.Stringer("kind", fault.KindOf(err)), zap.Error(err))
		return added, fmt.Errorf("upsert %d items: %w", len(items), err)
	}
	return added, nil
}

// Contains reports whether key is known.
func (s *Store[T]) Contains(key string) bool { return s.set.Contains(key) }

// Get returns the stored item for key.
func (s *Store[T]) Get(key string) (T, bool) { return s.set.Get(key) }

// DiffNew returns the candidates not yet known.
func (s *Store[T]) DiffNew(candidates []T) []T { return s.set.DiffNew(candidates) }

// All returns every known item in insertion order.
func (s *Store[T]) All() []T { return s.set.All() }

// Len returns the number of known items.
func (s *Store[T]) Len() int { return s.set.Len() }

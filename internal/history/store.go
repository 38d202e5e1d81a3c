package history

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// storageKey is the single durable slot the serialized history lives under.
const storageKey = "prediction_history"

// KV is the durable string key-value storage the history persists into.
// Implemented by storage.Store.
type KV interface {
	GetString(key string) (string, bool, error)
	SetString(key, value string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Store owns the ordered list of prediction records, newest first. Every
// mutation rewrites the full serialized list under one storage key and then
// notifies subscribers. Load and persist failures are handled internally:
// a corrupt persisted document resets the history to empty, and a failed
// write leaves the in-memory list as the source of truth for the session.
type Store struct {
	kv     KV
	clock  Clock
	logger *slog.Logger

	mu          sync.Mutex
	items       []Record
	loading     bool
	nextSubID   int
	subscribers map[int]func()
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock (for testing).
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store backed by kv and performs the initial load.
func New(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:          kv,
		clock:       realClock{},
		logger:      slog.Default(),
		subscribers: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reload()
	return s
}

// Subscribe registers fn to be called synchronously after every observable
// state change. The notification carries no payload; subscribers re-read
// Items, Favorites, and Loading. The returned function unsubscribes.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Items returns the records in their current order, newest first.
func (s *Store) Items() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.items))
	copy(out, s.items)
	return out
}

// Favorites returns the subset of records flagged favorite. The view is
// derived on every call, never stored separately.
func (s *Store) Favorites() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.items {
		if r.IsFavorite {
			out = append(out, r)
		}
	}
	return out
}

// Loading reports whether a reload is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Reload discards the in-memory list in favor of durable storage's current
// contents. Subscribers are notified twice: once when loading starts and once
// when it completes. A missing key yields an empty history; a corrupt value
// is logged and also yields an empty history.
func (s *Store) Reload() {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	s.notify()

	var items []Record
	raw, ok, err := s.kv.GetString(storageKey)
	switch {
	case err != nil:
		s.logger.Warn("reading prediction history failed, starting empty", "error", err)
	case ok:
		decoded, decErr := decodeRecords(raw, s.clock.Now())
		if decErr != nil {
			s.logger.Warn("prediction history corrupted, discarding", "error", decErr)
		} else {
			items = decoded
		}
	}

	s.mu.Lock()
	s.items = items
	s.loading = false
	s.mu.Unlock()
	s.notify()
}

// AddPrediction creates a record for a fresh prediction result and inserts it
// at the front of the list. The input map is stored as-is, unvalidated.
func (s *Store) AddPrediction(input map[string]any, price float64) Record {
	s.mu.Lock()
	now := s.clock.Now()
	rec := Record{
		ID:             strconv.FormatInt(now.UnixMilli(), 10),
		Input:          input,
		PredictedPrice: price,
		Timestamp:      now,
	}
	s.items = append([]Record{rec}, s.items...)
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
	return rec
}

// ToggleFavorite flips the favorite flag of the first record matching id.
// An unknown id is a silent no-op.
func (s *Store) ToggleFavorite(id string) {
	s.mu.Lock()
	idx := -1
	for i, r := range s.items {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	rec := s.items[idx]
	rec.IsFavorite = !rec.IsFavorite
	s.items[idx] = rec
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
}

// Remove deletes every record matching id. An unknown id leaves the list
// unchanged and is not an error.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	kept := s.items[:0]
	for _, r := range s.items {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.items = kept
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
}

// ClearAll empties the history and persists the empty list.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.items = nil
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
}

// persistLocked serializes the full list, in current order, under storageKey.
// Write failures are logged only; in-memory state is not rolled back.
func (s *Store) persistLocked() {
	encoded, err := encodeRecords(s.items)
	if err != nil {
		s.logger.Warn("encoding prediction history failed, durable copy is stale", "error", err)
		return
	}
	if err := s.kv.SetString(storageKey, encoded); err != nil {
		s.logger.Warn("persisting prediction history failed, durable copy is stale", "error", err)
	}
}

// notify invokes every subscriber outside the lock so callbacks can re-read
// store state.
func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

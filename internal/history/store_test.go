package history

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// fakeKV is an in-memory stand-in for the durable storage collaborator.
type fakeKV struct {
	values   map[string]string
	getErr   error
	setErr   error
	setCalls int
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string]string)}
}

func (f *fakeKV) GetString(key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeKV) SetString(key, value string) error {
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

// fakeClock advances one millisecond per Now call so consecutive record IDs
// never collide.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newTestStore(t *testing.T, kv *fakeKV) *Store {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New(kv, WithClock(clock))
}

func TestInitialLoadEmpty(t *testing.T) {
	s := newTestStore(t, newFakeKV())

	if got := s.Items(); len(got) != 0 {
		t.Errorf("Items = %v, want empty", got)
	}
	if s.Loading() {
		t.Error("Loading = true after initial load, want false")
	}
}

func TestInitialLoadFromStorage(t *testing.T) {
	kv := newFakeKV()
	kv.values[storageKey] = `[{"id":"a","input":{"area":1500},"predictedPrice":250000,"timestamp":"2025-01-01T00:00:00Z","isFavorite":true}]`

	s := newTestStore(t, kv)

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(items))
	}
	if items[0].ID != "a" || items[0].PredictedPrice != 250000 || !items[0].IsFavorite {
		t.Errorf("loaded record = %+v", items[0])
	}
}

// TestInsertionOrder adds three predictions and verifies newest-first order.
func TestInsertionOrder(t *testing.T) {
	s := newTestStore(t, newFakeKV())

	first := s.AddPrediction(map[string]any{"area": 100.0}, 1)
	second := s.AddPrediction(map[string]any{"area": 200.0}, 2)
	third := s.AddPrediction(map[string]any{"area": 300.0}, 3)

	items := s.Items()
	if len(items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(items))
	}
	if items[0].ID != third.ID {
		t.Errorf("Items[0].ID = %q, want most recent %q", items[0].ID, third.ID)
	}
	if items[2].ID != first.ID {
		t.Errorf("Items[2].ID = %q, want first added %q", items[2].ID, first.ID)
	}
	if items[1].ID != second.ID {
		t.Errorf("Items[1].ID = %q, want %q", items[1].ID, second.ID)
	}
}

func TestAddPredictionDefaults(t *testing.T) {
	s := newTestStore(t, newFakeKV())

	rec := s.AddPrediction(map[string]any{"area": 1500.0}, 250000.0)

	if rec.IsFavorite {
		t.Error("new record IsFavorite = true, want false")
	}
	if rec.ID == "" {
		t.Error("new record has empty ID")
	}
	if rec.Timestamp.IsZero() {
		t.Error("new record has zero timestamp")
	}
}

// favoriteIDs is a helper projecting the favorite subset by ID.
func favoriteIDs(records []Record) []string {
	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

// TestFavoritesProjection checks favorites == filter(isFavorite) after every
// kind of mutation.
func TestFavoritesProjection(t *testing.T) {
	s := newTestStore(t, newFakeKV())

	a := s.AddPrediction(map[string]any{"n": 1.0}, 1)
	b := s.AddPrediction(map[string]any{"n": 2.0}, 2)
	s.AddPrediction(map[string]any{"n": 3.0}, 3)

	check := func(step string) {
		t.Helper()
		var want []Record
		for _, r := range s.Items() {
			if r.IsFavorite {
				want = append(want, r)
			}
		}
		if !reflect.DeepEqual(favoriteIDs(s.Favorites()), favoriteIDs(want)) {
			t.Errorf("%s: Favorites = %v, want %v", step, favoriteIDs(s.Favorites()), favoriteIDs(want))
		}
	}

	check("after adds")
	s.ToggleFavorite(a.ID)
	check("after toggle a")
	s.ToggleFavorite(b.ID)
	check("after toggle b")
	s.Remove(a.ID)
	check("after remove a")
	s.ToggleFavorite(b.ID)
	check("after untoggle b")
	s.ClearAll()
	check("after clear")
}

// TestToggleFavoriteSelfInverse toggles twice and verifies the record is
// restored field-for-field.
func TestToggleFavoriteSelfInverse(t *testing.T) {
	s := newTestStore(t, newFakeKV())

	rec := s.AddPrediction(map[string]any{"area": 1200.0}, 99000.0)
	before := s.Items()[0]

	s.ToggleFavorite(rec.ID)
	if !s.Items()[0].IsFavorite {
		t.Fatal("first toggle did not set IsFavorite")
	}
	s.ToggleFavorite(rec.ID)

	after := s.Items()[0]
	if !reflect.DeepEqual(before, after) {
		t.Errorf("double toggle changed record:\n got %+v\nwant %+v", after, before)
	}
}

func TestToggleUnknownIDIsNoop(t *testing.T) {
	s := newTestStore(t, newFakeKV())
	s.AddPrediction(map[string]any{"area": 1.0}, 1)

	var notified int
	defer s.Subscribe(func() { notified++ })()

	before := s.Items()
	s.ToggleFavorite("no-such-id")

	if !reflect.DeepEqual(before, s.Items()) {
		t.Error("toggle of unknown id changed state")
	}
	if notified != 0 {
		t.Errorf("toggle of unknown id notified %d times, want 0", notified)
	}
}

// TestRemoveIdempotent removes the same id twice and compares against a
// single removal.
func TestRemoveIdempotent(t *testing.T) {
	s := newTestStore(t, newFakeKV())

	a := s.AddPrediction(map[string]any{"n": 1.0}, 1)
	s.AddPrediction(map[string]any{"n": 2.0}, 2)

	s.Remove(a.ID)
	once := s.Items()

	s.Remove(a.ID)
	twice := s.Items()

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second Remove changed state: %v vs %v", once, twice)
	}
	if len(twice) != 1 {
		t.Errorf("len(Items) = %d, want 1", len(twice))
	}
}

func TestClearAllPersistsEmptyArray(t *testing.T) {
	kv := newFakeKV()
	s := newTestStore(t, kv)

	s.AddPrediction(map[string]any{"n": 1.0}, 1)
	s.ClearAll()

	if len(s.Items()) != 0 {
		t.Errorf("Items after ClearAll = %v, want empty", s.Items())
	}
	if kv.values[storageKey] != "[]" {
		t.Errorf("persisted value = %q, want %q", kv.values[storageKey], "[]")
	}
}

// TestCorruptedHistoryResetsEmpty loads a store over a non-JSON persisted
// value: the history comes up empty and loading completes without panic.
func TestCorruptedHistoryResetsEmpty(t *testing.T) {
	kv := newFakeKV()
	kv.values[storageKey] = "{{{ definitely not json"

	s := newTestStore(t, kv)

	if got := s.Items(); len(got) != 0 {
		t.Errorf("Items = %v, want empty after corrupt load", got)
	}
	if s.Loading() {
		t.Error("Loading = true, want false")
	}
}

func TestReadErrorStartsEmpty(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = errors.New("disk on fire")

	s := newTestStore(t, kv)

	if got := s.Items(); len(got) != 0 {
		t.Errorf("Items = %v, want empty", got)
	}
	if s.Loading() {
		t.Error("Loading = true, want false")
	}
}

// TestPersistFailureKeepsMemory verifies a failed write does not roll back
// the in-memory list.
func TestPersistFailureKeepsMemory(t *testing.T) {
	kv := newFakeKV()
	s := newTestStore(t, kv)
	kv.setErr = errors.New("write failed")

	s.AddPrediction(map[string]any{"area": 1500.0}, 250000.0)

	if len(s.Items()) != 1 {
		t.Errorf("len(Items) = %d, want 1 despite persist failure", len(s.Items()))
	}
}

// TestReloadDiscardsMemory mutates storage behind the store's back and
// reloads.
func TestReloadDiscardsMemory(t *testing.T) {
	kv := newFakeKV()
	s := newTestStore(t, kv)

	s.AddPrediction(map[string]any{"n": 1.0}, 1)
	kv.values[storageKey] = "[]"

	s.Reload()

	if len(s.Items()) != 0 {
		t.Errorf("Items after reload = %v, want empty", s.Items())
	}
}

func TestNotificationCounts(t *testing.T) {
	s := newTestStore(t, newFakeKV())

	var notified int
	unsubscribe := s.Subscribe(func() { notified++ })

	rec := s.AddPrediction(map[string]any{"n": 1.0}, 1)
	if notified != 1 {
		t.Errorf("after AddPrediction: %d notifications, want 1", notified)
	}

	notified = 0
	s.ToggleFavorite(rec.ID)
	if notified != 1 {
		t.Errorf("after ToggleFavorite: %d notifications, want 1", notified)
	}

	notified = 0
	s.Reload()
	if notified != 2 {
		t.Errorf("after Reload: %d notifications, want 2 (loading start + completion)", notified)
	}

	notified = 0
	s.Remove(rec.ID)
	if notified != 1 {
		t.Errorf("after Remove: %d notifications, want 1", notified)
	}

	notified = 0
	s.ClearAll()
	if notified != 1 {
		t.Errorf("after ClearAll: %d notifications, want 1", notified)
	}

	unsubscribe()
	notified = 0
	s.AddPrediction(map[string]any{"n": 2.0}, 2)
	if notified != 0 {
		t.Errorf("after unsubscribe: %d notifications, want 0", notified)
	}
}

// TestLoadingVisibleDuringReload observes loading=true at the first reload
// notification and false at the second.
func TestLoadingVisibleDuringReload(t *testing.T) {
	s := newTestStore(t, newFakeKV())

	var states []bool
	defer s.Subscribe(func() { states = append(states, s.Loading()) })()

	s.Reload()

	if len(states) != 2 || !states[0] || states[1] {
		t.Errorf("observed loading states %v, want [true false]", states)
	}
}

// TestEndToEndScenario walks the full lifecycle: add, toggle, clear.
func TestEndToEndScenario(t *testing.T) {
	kv := newFakeKV()
	s := newTestStore(t, kv)

	rec := s.AddPrediction(map[string]any{"area": 1500.0}, 250000.0)
	if len(s.Items()) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(s.Items()))
	}
	if s.Items()[0].IsFavorite {
		t.Error("fresh record IsFavorite = true, want false")
	}

	s.ToggleFavorite(rec.ID)
	if len(s.Favorites()) != 1 {
		t.Errorf("len(Favorites) = %d, want 1", len(s.Favorites()))
	}

	s.ClearAll()
	if len(s.Items()) != 0 {
		t.Errorf("len(Items) = %d, want 0", len(s.Items()))
	}
	if kv.values[storageKey] != "[]" {
		t.Errorf("persisted value = %q, want empty array", kv.values[storageKey])
	}
}

// TestStoreBackedPersistence round-trips the store through a fresh instance
// over the same storage.
func TestStoreBackedPersistence(t *testing.T) {
	kv := newFakeKV()
	s1 := newTestStore(t, kv)

	rec := s1.AddPrediction(map[string]any{"area": 800.0, "bedrooms": 2.0}, 150000.0)
	s1.ToggleFavorite(rec.ID)

	s2 := newTestStore(t, kv)
	items := s2.Items()
	if len(items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(items))
	}
	if items[0].ID != rec.ID || !items[0].IsFavorite || items[0].PredictedPrice != 150000.0 {
		t.Errorf("reloaded record = %+v", items[0])
	}
}

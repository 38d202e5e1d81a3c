package storage

import (
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestGetStringAbsent(t *testing.T) {
	s := openTestStore(t)

	val, ok, err := s.GetString("prediction_history")
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if ok {
		t.Errorf("expected absent key, got value %q", val)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetString("prediction_history", `[{"id":"1"}]`); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	val, ok, err := s.GetString("prediction_history")
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if !ok {
		t.Fatal("expected key to be present")
	}
	if val != `[{"id":"1"}]` {
		t.Errorf("value = %q, want %q", val, `[{"id":"1"}]`)
	}
}

// TestSetStringOverwrites verifies a second write fully replaces the first.
func TestSetStringOverwrites(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetString("k", "first"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := s.SetString("k", "second"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	val, ok, err := s.GetString("k")
	if err != nil || !ok {
		t.Fatalf("GetString: val=%q ok=%v err=%v", val, ok, err)
	}
	if val != "second" {
		t.Errorf("value = %q, want %q", val, "second")
	}
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	s := openTestStore(t)

	if err := s.Delete("missing"); err != nil {
		t.Errorf("Delete of absent key returned error: %v", err)
	}
}

func TestKeys(t *testing.T) {
	s := openTestStore(t)

	for _, k := range []string{"b", "a", "c"} {
		if err := s.SetString(k, "v"); err != nil {
			t.Fatalf("SetString(%q): %v", k, err)
		}
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

// TestPersistenceAcrossOpens writes a value, reopens the database, and reads it back.
func TestPersistenceAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.SetString("prediction_history", "[]"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	val, ok, err := s2.GetString("prediction_history")
	if err != nil || !ok {
		t.Fatalf("GetString after reopen: val=%q ok=%v err=%v", val, ok, err)
	}
	if val != "[]" {
		t.Errorf("value = %q, want %q", val, "[]")
	}
}

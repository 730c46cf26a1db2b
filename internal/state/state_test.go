package state

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "attend.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDismissIdempotent(t *testing.T) {
	store := openTestStore(t)

	if err := store.Dismiss("u1", "call-c1"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := store.Dismiss("u1", "call-c1"); err != nil {
		t.Fatalf("second dismiss: %v", err)
	}

	set, err := store.Dismissed("u1")
	if err != nil {
		t.Fatalf("dismissed: %v", err)
	}
	if len(set) != 1 || !set["call-c1"] {
		t.Fatalf("set=%v want exactly call-c1", set)
	}
}

func TestDismissedScopedPerUser(t *testing.T) {
	store := openTestStore(t)

	if err := store.Dismiss("u1", "call-c1"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	other, err := store.Dismissed("u2")
	if err != nil {
		t.Fatalf("dismissed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("u2 must not see u1 dismissals: %v", other)
	}
}

func TestDismissedSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attend.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Dismiss("u1", "space-s1"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	set, err := reopened.Dismissed("u1")
	if err != nil {
		t.Fatalf("dismissed: %v", err)
	}
	if !set["space-s1"] {
		t.Fatalf("dismissal lost across reopen: %v", set)
	}
}

func TestClearDismissed(t *testing.T) {
	store := openTestStore(t)

	if err := store.Dismiss("u1", "call-c1"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := store.ClearDismissed("u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	set, err := store.Dismissed("u1")
	if err != nil {
		t.Fatalf("dismissed: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("set not cleared: %v", set)
	}
}

func TestCorruptValueDegradesToEmpty(t *testing.T) {
	store := openTestStore(t)

	if err := store.set("u1", dismissedKey, "{not json"); err != nil {
		t.Fatalf("set: %v", err)
	}
	set, err := store.Dismissed("u1")
	if err != nil {
		t.Fatalf("corrupt value must not error: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("corrupt value must yield empty set: %v", set)
	}
}

func TestDismissedOrEmptyNilStore(t *testing.T) {
	set := DismissedOrEmpty(nil, "u1")
	if set == nil || len(set) != 0 {
		t.Fatalf("nil store must yield empty set, got %v", set)
	}
}

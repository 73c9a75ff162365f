package prismblog

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
}

func TestSaveAndGetSnapshot(t *testing.T) {
	s := setupTestStore(t)
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	if err := s.SaveSnapshot(Snapshot{Key: "index", Body: []byte(`{"next_page":"/page2"}`), GeneratedAt: at}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := s.GetSnapshot("index")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got.Key != "index" {
		t.Errorf("Key = %q, want %q", got.Key, "index")
	}
	if string(got.Body) != `{"next_page":"/page2"}` {
		t.Errorf("Body = %q", got.Body)
	}
	if !got.GeneratedAt.Equal(at) {
		t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, at)
	}
}

func TestSaveSnapshotReplaces(t *testing.T) {
	s := setupTestStore(t)
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := s.SaveSnapshot(Snapshot{Key: "index", Body: []byte(`{"v":1}`), GeneratedAt: first}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := s.SaveSnapshot(Snapshot{Key: "index", Body: []byte(`{"v":2}`), GeneratedAt: first.Add(time.Hour)}); err != nil {
		t.Fatalf("SaveSnapshot update failed: %v", err)
	}

	got, err := s.GetSnapshot("index")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if string(got.Body) != `{"v":2}` {
		t.Errorf("Body = %q, want updated body", got.Body)
	}
	if !got.GeneratedAt.Equal(first.Add(time.Hour)) {
		t.Errorf("GeneratedAt = %v", got.GeneratedAt)
	}
}

func TestGetSnapshotMissing(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetSnapshot("nope")
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestListAndDeleteSnapshots(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now()
	for _, key := range []string{"post/b", "index", "post/a"} {
		if err := s.SaveSnapshot(Snapshot{Key: key, Body: []byte(`{}`), GeneratedAt: now}); err != nil {
			t.Fatalf("SaveSnapshot(%s) failed: %v", key, err)
		}
	}

	snaps, err := s.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	want := []string{"index", "post/a", "post/b"}
	if len(snaps) != len(want) {
		t.Fatalf("got %d snapshots, want %d", len(snaps), len(want))
	}
	for i, k := range want {
		if snaps[i].Key != k {
			t.Errorf("snaps[%d].Key = %q, want %q", i, snaps[i].Key, k)
		}
	}

	if err := s.DeleteSnapshot("post/a"); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}
	if _, err := s.GetSnapshot("post/a"); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("deleted snapshot still present: %v", err)
	}
	snaps, _ = s.ListSnapshots()
	if len(snaps) != 2 {
		t.Errorf("got %d snapshots after delete, want 2", len(snaps))
	}
}

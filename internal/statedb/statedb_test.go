package statedb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	fs, err := NewFileStore(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	sq, err := NewSQLiteStore(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		fs.Close()
		sq.Close()
	})
	return map[string]Store{"file": fs, "sqlite": sq}
}

func TestStore_SaveFetchRemove(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Fetch(ctx, "missing"); err != nil || ok {
				t.Fatalf("Fetch missing = ok=%v err=%v, want absent", ok, err)
			}

			if err := s.Save(ctx, "last-path", "a/b"); err != nil {
				t.Fatalf("Save: %v", err)
			}
			v, ok, err := s.Fetch(ctx, "last-path")
			if err != nil || !ok {
				t.Fatalf("Fetch = ok=%v err=%v", ok, err)
			}
			if v != "a/b" {
				t.Errorf("value = %q, want a/b", v)
			}

			if err := s.Save(ctx, "last-path", "c"); err != nil {
				t.Fatalf("Save overwrite: %v", err)
			}
			v, _, _ = s.Fetch(ctx, "last-path")
			if v != "c" {
				t.Errorf("value after overwrite = %q, want c", v)
			}

			if err := s.Remove(ctx, "last-path"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if _, ok, _ := s.Fetch(ctx, "last-path"); ok {
				t.Error("key present after Remove")
			}

			if err := s.Remove(ctx, "never-existed"); err != nil {
				t.Errorf("Remove of missing key: %v", err)
			}
		})
	}
}

func TestFileStore_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s1, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s1.Save(ctx, "k", "v"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, ok, err := s2.Fetch(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Errorf("Fetch after reopen = %q ok=%v err=%v", v, ok, err)
	}
}

func TestFileStore_CorruptFileDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore on corrupt file: %v", err)
	}
	if _, ok, _ := s.Fetch(context.Background(), "anything"); ok {
		t.Error("corrupt store should start empty")
	}
}

func TestFileStore_NoTempFileLeft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Save(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error(".tmp file left behind after Save")
	}
}

func TestSQLiteStore_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s1, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s1.Save(ctx, "k", "v"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s1.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, ok, err := s2.Fetch(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Errorf("Fetch after reopen = %q ok=%v err=%v", v, ok, err)
	}
}

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/daybook/internal/apperr"
)

func tempFS(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestSetAndGet(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	blob := []byte(`[{"id":1,"text":"hello"}]`)
	if err := s.Set(ctx, "local/notes/2025-11-19", blob); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "local/notes/2025-11-19")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("blob mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "local", "notes", "2025-11-19.json")); err != nil {
		t.Errorf("expected bucket file on disk: %v", err)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := tempFS(t)
	_, err := s.Get(context.Background(), "local/notes/2025-11-19")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetReplacesWholeBlob(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	_ = s.Set(ctx, "k", []byte("a much longer first value"))
	_ = s.Set(ctx, "k", []byte("short"))
	got, _ := s.Get(ctx, "k")
	if string(got) != "short" {
		t.Errorf("got %q, want %q", got, "short")
	}
}

func TestSetLeavesNoTempFiles(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	_ = s.Set(ctx, "a/b", []byte("x"))
	entries, err := os.ReadDir(filepath.Join(s.Root(), "a"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tmpPrefix) {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	_ = s.Set(ctx, "gone", []byte("bye"))
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := s.Get(ctx, "gone"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestKeysByPrefix(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	for _, k := range []string{"u1/notes/2025-11-20", "u1/notes/2025-11-19", "u1/jobs/2025-11-19", "u2/notes/2025-11-19"} {
		if err := s.Set(ctx, k, []byte("[]")); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Keys(ctx, "u1/notes/")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"u1/notes/2025-11-19", "u1/notes/2025-11-20"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
}

func TestKeysIgnoresForeignFiles(t *testing.T) {
	s := tempFS(t)
	_ = os.WriteFile(filepath.Join(s.Root(), "readme.md"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(s.Root(), tmpPrefix+"123.json"), []byte("x"), 0o644)
	got, err := s.Keys(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("Keys = %v, want none", got)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	for _, key := range []string{"../escape", "a/../../escape", "/etc/passwd", ""} {
		if err := s.Set(ctx, key, []byte("x")); err == nil {
			t.Errorf("Set(%q): expected error", key)
		}
	}
}

func TestKeyFor(t *testing.T) {
	s := tempFS(t)
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{filepath.Join(s.Root(), "u", "notes", "2025-11-19.json"), "u/notes/2025-11-19", true},
		{filepath.Join(s.Root(), "u", "notes", tmpPrefix+"1"), "", false},
		{filepath.Join(s.Root(), "notes.txt"), "", false},
		{filepath.Join(filepath.Dir(s.Root()), "outside.json"), "", false},
	}
	for _, tt := range tests {
		got, ok := s.KeyFor(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KeyFor(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewFSRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(f, []byte("x"), 0o644)
	if _, err := NewFS(f); err == nil {
		t.Error("expected error for non-directory root")
	}
}

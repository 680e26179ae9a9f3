package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) cb(key string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if removed {
		r.events = append(r.events, "removed:"+key)
		return
	}
	r.events = append(r.events, "changed:"+key)
}

func (r *recorder) has(ev string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == ev {
			return true
		}
	}
	return false
}

func startWatch(t *testing.T, s *FS, rec *recorder) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Watch(ctx, logger, rec.cb)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatchReportsExternalWrite(t *testing.T) {
	s := tempFS(t)
	_ = os.MkdirAll(filepath.Join(s.Root(), "u", "notes"), 0o755)
	rec := &recorder{}
	startWatch(t, s, rec)

	_ = os.WriteFile(filepath.Join(s.Root(), "u", "notes", "2025-11-19.json"), []byte("[]"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("changed:u/notes/2025-11-19")
	}, "external write not reported")
}

func TestWatchPicksUpNewDirectories(t *testing.T) {
	s := tempFS(t)
	rec := &recorder{}
	startWatch(t, s, rec)

	ctx := context.Background()
	if err := s.Set(ctx, "bob/jobs/2025-11-20", []byte("[]")); err != nil {
		t.Fatal(err)
	}
	// The first write may race the directory registration; write again.
	time.Sleep(100 * time.Millisecond)
	_ = s.Set(ctx, "bob/jobs/2025-11-20", []byte("[ ]"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("changed:bob/jobs/2025-11-20")
	}, "write in new directory not reported")
}

func TestWatchReportsRemoval(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	_ = s.Set(ctx, "u/notes/2025-11-19", []byte("[]"))
	rec := &recorder{}
	startWatch(t, s, rec)

	_ = s.Delete(ctx, "u/notes/2025-11-19")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("removed:u/notes/2025-11-19")
	}, "removal not reported")
}

func TestWatchIgnoresTempFiles(t *testing.T) {
	s := tempFS(t)
	rec := &recorder{}
	startWatch(t, s, rec)

	_ = os.WriteFile(filepath.Join(s.Root(), tmpPrefix+"abc"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(s.Root(), "real.json"), []byte("[]"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("changed:real")
	}, "real write not reported")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, e := range rec.events {
		if e != "changed:real" {
			t.Errorf("unexpected event %q", e)
		}
	}
}

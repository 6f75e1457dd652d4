package watch

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func acceptMKV(path string) bool { return strings.HasSuffix(path, ".mkv") }

func TestWatcherDispatchesSettledFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "converted")
	if err := os.Mkdir(out, 0o755); err != nil {
		t.Fatal(err)
	}
	w, err := New([]string{dir}, Options{Settle: 150 * time.Millisecond, Accept: acceptMKV, Exclude: []string{out}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, paths []string) { got <- paths })
	}()

	// Give the watcher a moment to start its loop.
	time.Sleep(50 * time.Millisecond)
	for _, name := range []string{"b.mkv", "a.mkv", "notes.txt", ".hidden.mkv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var batch []string
	select {
	case batch = <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no batch dispatched")
	}
	want := []string{filepath.Join(dir, "a.mkv"), filepath.Join(dir, "b.mkv")}
	if !reflect.DeepEqual(batch, want) {
		t.Fatalf("batch = %v, want %v", batch, want)
	}

	// Writes into excluded directories never dispatch.
	if err := os.WriteFile(filepath.Join(out, "c.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case extra := <-got:
		t.Fatalf("unexpected batch %v", extra)
	case <-time.After(400 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestWatcherIncludeExisting(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.mkv")
	if err := os.WriteFile(existing, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := New([]string{dir}, Options{Settle: 100 * time.Millisecond, Accept: acceptMKV, IncludeExisting: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan []string, 1)
	go func() { _ = w.Run(ctx, func(_ context.Context, paths []string) { got <- paths }) }()

	select {
	case batch := <-got:
		if !reflect.DeepEqual(batch, []string{existing}) {
			t.Fatalf("batch = %v", batch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("existing file not dispatched")
	}
}

func TestSettledWaitsForStableSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "growing.mkv")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := New([]string{dir}, Options{Settle: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsw.Close()
	clock := time.Unix(1000, 0)
	w.now = func() time.Time { return clock }

	w.observe(path)
	clock = clock.Add(2 * time.Second)
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	if batch := w.settled(); len(batch) != 0 {
		t.Fatalf("growing file dispatched: %v", batch)
	}
	clock = clock.Add(2 * time.Second)
	if batch := w.settled(); len(batch) != 1 {
		t.Fatalf("stable file not dispatched: %v", batch)
	}
	w.observe(path)
	clock = clock.Add(2 * time.Second)
	if batch := w.settled(); len(batch) != 0 {
		t.Fatalf("dispatched file queued again: %v", batch)
	}
}

func TestNewRequiresDirs(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Fatal("expected error without dirs")
	}
	if _, err := New([]string{filepath.Join(t.TempDir(), "missing")}, Options{}); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"aacnorm/internal/encoding"
	"aacnorm/internal/media/ffprobe"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.StartRun(ctx, "run-1", 2, `{"AudioBitrate":"224k"}`); err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := store.RecordFile(ctx, FileRecord{RunID: "run-1", Index: 1, InputPath: "/in/a.mkv", State: "probing"}); err != nil {
		t.Fatalf("record file: %v", err)
	}
	if err := store.RecordFile(ctx, FileRecord{RunID: "run-1", Index: 1, InputPath: "/in/a.mkv", OutputPath: "/out/a.mkv", State: "succeeded", Elapsed: 1500 * time.Millisecond}); err != nil {
		t.Fatalf("update file: %v", err)
	}
	if err := store.RecordFile(ctx, FileRecord{RunID: "run-1", Index: 2, InputPath: "/in/b.mkv", State: "failed", ErrorMessage: "boom"}); err != nil {
		t.Fatalf("record second file: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", RunComplete); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", RunCancelled); err != nil {
		t.Fatalf("second finish: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Status != RunComplete || run.Succeeded != 1 || run.Failed != 1 || run.FileCount != 2 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.FinishedAt.IsZero() {
		t.Fatal("finished_at not recorded")
	}

	files, err := store.RunFiles(ctx, "run-1")
	if err != nil {
		t.Fatalf("run files: %v", err)
	}
	if len(files) != 2 || files[0].State != "succeeded" || files[0].Elapsed != 1500*time.Millisecond || files[1].ErrorMessage != "boom" {
		t.Fatalf("unexpected files %+v", files)
	}
}

func TestStoreGetRunByPrefix(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"abc-1", "abd-2"} {
		if err := store.StartRun(ctx, id, 0, ""); err != nil {
			t.Fatal(err)
		}
	}
	run, err := store.GetRun(ctx, "abc")
	if err != nil || run == nil || run.ID != "abc-1" {
		t.Fatalf("GetRun(abc) = %+v, %v", run, err)
	}
	if _, err := store.GetRun(ctx, "ab"); err == nil {
		t.Fatal("expected ambiguity error")
	}
	run, err = store.GetRun(ctx, "zzz")
	if err != nil || run != nil {
		t.Fatalf("GetRun(zzz) = %+v, %v", run, err)
	}
}

func TestStorePruneCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.StartRun(ctx, "old", 1, ""); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordFile(ctx, FileRecord{RunID: "old", Index: 1, InputPath: "a", State: "failed"}); err != nil {
		t.Fatal(err)
	}
	n, err := store.Prune(ctx, time.Now().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	files, err := store.RunFiles(ctx, "old")
	if err != nil || len(files) != 0 {
		t.Fatalf("files survived prune: %+v, %v", files, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestIsSQLiteBusy(t *testing.T) {
	if isSQLiteBusy(nil) || isSQLiteBusy(sql.ErrNoRows) {
		t.Fatal("non-busy errors misclassified")
	}
	if !isSQLiteBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatal("busy message not detected")
	}
}

func TestRecorderPersistsEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	rec, err := NewRecorder(ctx, store, "run-r", 1, encoding.Settings{AudioBitrate: "224k"}, nil)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rate := int64(224000)
	rec.Emit(encoding.Event{Type: encoding.EventFileStarted, FileIndex: 1, Input: "/in/a.mkv", Output: "/out/a.mkv", State: encoding.StateProbing})
	rec.Emit(encoding.Event{Type: encoding.EventProgress, FileIndex: 1, Percent: 50})
	rec.Emit(encoding.Event{
		Type:      encoding.EventFileFinished,
		FileIndex: 1,
		Input:     "/in/a.mkv",
		Output:    "/out/a.mkv",
		State:     encoding.StateSucceeded,
		Elapsed:   time.Second,
		Streams:   []ffprobe.AudioStream{{Index: 1, CodecName: "aac", Channels: 2, BitRate: &rate}},
	})
	rec.Emit(encoding.Event{Type: encoding.EventComplete})
	rec.Finish(RunCancelled)

	run, err := store.GetRun(ctx, "run-r")
	if err != nil || run == nil {
		t.Fatalf("GetRun: %+v, %v", run, err)
	}
	if run.Status != RunComplete || run.Succeeded != 1 {
		t.Fatalf("unexpected run %+v", run)
	}
	files, err := store.RunFiles(ctx, "run-r")
	if err != nil || len(files) != 1 {
		t.Fatalf("files = %+v, %v", files, err)
	}
	if files[0].StreamsJSON == "" || files[0].OutputPath != "/out/a.mkv" {
		t.Fatalf("unexpected file %+v", files[0])
	}
}

func TestNewRunIDUnique(t *testing.T) {
	if NewRunID() == NewRunID() {
		t.Fatal("run ids collide")
	}
}

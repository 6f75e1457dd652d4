package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"aacnorm/internal/encoding"
	"aacnorm/internal/logging"
)

// Recorder persists runner events. It implements encoding.Sink; database
// errors are logged and never interrupt the run.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger

	mu       sync.Mutex
	finished bool
}

// NewRecorder starts a run row and returns a sink that fills it in.
func NewRecorder(ctx context.Context, store *Store, runID string, fileCount int, settings encoding.Settings, logger *slog.Logger) (*Recorder, error) {
	payload, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	if err := store.StartRun(ctx, runID, fileCount, string(payload)); err != nil {
		return nil, err
	}
	return &Recorder{
		store:  store,
		runID:  runID,
		logger: logging.NewComponentLogger(logger, "history"),
	}, nil
}

// Emit implements encoding.Sink.
func (r *Recorder) Emit(e encoding.Event) {
	switch e.Type {
	case encoding.EventFileStarted, encoding.EventFileFinished:
		r.recordFile(e)
	case encoding.EventComplete:
		r.Finish(RunComplete)
	case encoding.EventQueueFailed:
		r.Finish(RunFailed)
	}
}

func (r *Recorder) recordFile(e encoding.Event) {
	rec := FileRecord{
		RunID:      r.runID,
		Index:      e.FileIndex,
		InputPath:  e.Input,
		OutputPath: e.Output,
		State:      string(e.State),
		Elapsed:    e.Elapsed,
	}
	if e.Type == encoding.EventFileFinished {
		rec.ErrorMessage = e.Detail
		if len(e.Streams) > 0 {
			if payload, err := json.Marshal(e.Streams); err == nil {
				rec.StreamsJSON = string(payload)
			}
		}
	}
	if err := r.store.RecordFile(context.Background(), rec); err != nil {
		logging.WarnWithContext(r.logger, "history write failed", "history_write",
			logging.String("run_id", r.runID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory is writable"),
		)
	}
}

// Finish records the terminal run status once. Later calls are ignored.
func (r *Recorder) Finish(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	if err := r.store.FinishRun(context.Background(), r.runID, status); err != nil {
		logging.WarnWithContext(r.logger, "history finish failed", "history_write",
			logging.String("run_id", r.runID),
			logging.Error(err),
		)
	}
}

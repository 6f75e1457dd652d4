package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	fileIndexKey contextKey = "file_index"
	stageKey     contextKey = "stage"
)

// WithRunID annotates context with the conversion run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithFileIndex annotates context with the 1-based position of the file in the queue.
func WithFileIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, fileIndexKey, index)
}

// FileIndexFromContext extracts the queue position if present.
func FileIndexFromContext(ctx context.Context) (int, bool) {
	switch val := ctx.Value(fileIndexKey).(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the per-file state name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

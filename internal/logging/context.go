package logging

import (
	"context"
	"log/slog"

	"aacnorm/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for the conversion run identifier.
	FieldRunID = "run_id"
	// FieldFileIndex is the standardized key for the 1-based queue position.
	FieldFileIndex = "file_index"
	// FieldFileCount is the standardized key for the number of files in the run.
	FieldFileCount = "file_count"
	// FieldFileName is the standardized key for the input file base name.
	FieldFileName = "file_name"
	// FieldStage is the standardized key for per-file state names.
	FieldStage = "stage"
	// FieldEventType classifies notable log lines.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldProgressPercent is the per-file completion percent.
	FieldProgressPercent = "progress_percent"
	// FieldProgressETA is the rendered ETA text.
	FieldProgressETA = "progress_eta"
	// FieldOverallPercent is the run-wide completion percent.
	FieldOverallPercent = "overall_percent"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if idx, ok := services.FileIndexFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldFileIndex, idx))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return logger.With(args...)
}

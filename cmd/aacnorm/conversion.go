package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"aacnorm/internal/config"
	"aacnorm/internal/encoding"
	"aacnorm/internal/history"
	"aacnorm/internal/logging"
	"aacnorm/internal/media/ffprobe"
	"aacnorm/internal/preflight"
	"aacnorm/internal/runlock"
	"aacnorm/internal/services"
)

type conversionOptions struct {
	jsonOutput    bool
	noHistory     bool
	skipPreflight bool
	// ctrl, when set, lets the caller skip or cancel from outside.
	ctrl *encoding.Controller
}

// runConversion executes one queue of files against cfg, wiring the
// renderer, the history recorder and the output-directory lock.
func runConversion(ctx context.Context, cmd *cobra.Command, cc *commandContext, cfg *config.Config, logger *slog.Logger, files []string, opts conversionOptions) (encoding.Summary, error) {
	if !opts.skipPreflight {
		if failed := preflight.Failed(preflight.RunAll(ctx, cfg)); len(failed) > 0 {
			parts := make([]string, 0, len(failed))
			for _, r := range failed {
				parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
			}
			return encoding.Summary{}, services.Wrap(services.ErrConfiguration, "preflight", "check environment", strings.Join(parts, "; "), nil)
		}
	}

	lock, err := runlock.Acquire(cfg.Paths.StateDir, cfg.Paths.OutputDir)
	if err != nil {
		return encoding.Summary{}, services.Wrap(services.ErrValidation, "runlock", "acquire", "another run is writing to "+cfg.Paths.OutputDir, err)
	}
	defer func() { _ = lock.Release() }()

	runID := history.NewRunID()
	settings := encoding.SettingsFromConfig(cfg)

	sinks := []encoding.Sink{conversionSink(cmd.OutOrStdout(), cc.isVerbose(), opts.jsonOutput)}
	var recorder *history.Recorder
	if cfg.History.Enabled && !opts.noHistory {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logHistoryUnavailable(logger, err)
		} else {
			defer store.Close()
			recorder, err = history.NewRecorder(ctx, store, runID, len(files), settings, logger)
			if err != nil {
				logHistoryUnavailable(logger, err)
			} else {
				sinks = append(sinks, recorder)
			}
		}
	}

	runner := encoding.NewRunner(settings, ffprobe.NewInspector(cfg.FFprobeBinary(), logger), encoding.MultiSink(sinks...), opts.ctrl, encoding.Options{
		FFmpegBinary:     cfg.FFmpegBinary(),
		RunID:            runID,
		PollInterval:     cfg.PollInterval(),
		SizePollInterval: cfg.SizePollInterval(),
		StopTimeout:      cfg.StopTimeout(),
		Logger:           logger,
	})
	summary := runner.Run(ctx, files)
	// A queue_failed event has already finished the run as failed, so this
	// only marks runs that were cancelled.
	if recorder != nil && !summary.Completed {
		recorder.Finish(history.RunCancelled)
	}
	return summary, nil
}

func conversionSink(out io.Writer, verbose, jsonOutput bool) encoding.Sink {
	if jsonOutput {
		return newJSONEventSink(out)
	}
	return newProgressRenderer(out, verbose)
}

func logHistoryUnavailable(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "run history unavailable", "history_open",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check history.path or pass --no-history"),
	)
}

// summaryError converts a finished summary into the command's exit status.
func summaryError(summary encoding.Summary, total int) error {
	if !summary.Completed {
		return context.Canceled
	}
	if failed := summary.Count(encoding.StateFailed); failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, total)
	}
	return nil
}

var errNoInputs = errors.New("no supported media files found")

package encoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"aacnorm/internal/logging"
	"aacnorm/internal/media/ffprobe"
	"aacnorm/internal/services"
)

const (
	defaultPollInterval     = 50 * time.Millisecond
	defaultSizePollInterval = 250 * time.Millisecond
	defaultStopTimeout      = time.Second
)

// Inspector is the probing surface the runner depends on. Each method returns
// a usable default alongside any error.
type Inspector interface {
	AudioStreams(ctx context.Context, path string) ([]ffprobe.AudioStream, error)
	VideoStream(ctx context.Context, path string) (ffprobe.VideoStream, error)
	DurationSeconds(ctx context.Context, path string) (float64, error)
	OutputBitrates(ctx context.Context, path string) ([]ffprobe.AudioStream, error)
}

// Options tunes the runner. Zero values select the defaults.
type Options struct {
	FFmpegBinary     string
	RunID            string
	PollInterval     time.Duration
	SizePollInterval time.Duration
	StopTimeout      time.Duration
	Logger           *slog.Logger
}

// FileResult is the outcome of one file.
type FileResult struct {
	Input   string
	Output  string
	State   FileState
	Err     error
	Elapsed time.Duration
	Streams []ffprobe.AudioStream
}

// Summary is returned by Run once the queue stops.
type Summary struct {
	RunID     string
	Results   []FileResult
	Completed bool
}

// Count returns how many files ended in state.
func (s Summary) Count(state FileState) int {
	n := 0
	for _, r := range s.Results {
		if r.State == state {
			n++
		}
	}
	return n
}

// Runner converts files one at a time, reporting through a Sink.
type Runner struct {
	settings  Settings
	inspector Inspector
	sink      Sink
	ctrl      *Controller
	logger    *slog.Logger

	ffmpeg           string
	runID            string
	pollInterval     time.Duration
	sizePollInterval time.Duration
	stopTimeout      time.Duration

	seq atomic.Uint64
	now func() time.Time
}

// NewRunner wires a runner. A nil controller gets a fresh one.
func NewRunner(settings Settings, inspector Inspector, sink Sink, ctrl *Controller, opts Options) *Runner {
	if ctrl == nil {
		ctrl = NewController()
	}
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	r := &Runner{
		settings:         settings,
		inspector:        inspector,
		sink:             sink,
		ctrl:             ctrl,
		logger:           logging.NewComponentLogger(opts.Logger, "encoder"),
		ffmpeg:           strings.TrimSpace(opts.FFmpegBinary),
		runID:            opts.RunID,
		pollInterval:     opts.PollInterval,
		sizePollInterval: opts.SizePollInterval,
		stopTimeout:      opts.StopTimeout,
		now:              time.Now,
	}
	if r.ffmpeg == "" {
		r.ffmpeg = "ffmpeg"
	}
	if r.pollInterval <= 0 {
		r.pollInterval = defaultPollInterval
	}
	if r.sizePollInterval <= 0 {
		r.sizePollInterval = defaultSizePollInterval
	}
	if r.stopTimeout <= 0 {
		r.stopTimeout = defaultStopTimeout
	}
	return r
}

// Controller returns the controller the runner polls.
func (r *Runner) Controller() *Controller { return r.ctrl }

// Run processes files in order. Per-file failures are reported and skipped.
// Cancelling ctx is equivalent to Controller.Cancel.
func (r *Runner) Run(ctx context.Context, files []string) (summary Summary) {
	summary.RunID = r.runID
	ctx = services.WithRunID(ctx, r.runID)
	logger := logging.WithContext(ctx, r.logger)
	stop := context.AfterFunc(ctx, func() { r.ctrl.Cancel() })
	defer stop()
	if ctx.Err() != nil {
		r.ctrl.Cancel()
	}

	total := len(files)
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		msg := fmt.Sprintf("An unexpected error occurred: %v", rec)
		logging.ErrorWithContext(logger, "conversion queue failed", string(EventQueueFailed),
			logging.String("panic", fmt.Sprint(rec)),
			logging.String("stack", string(debug.Stack())),
		)
		r.emit(Event{Type: EventQueueFailed, RunID: r.runID, FileCount: total, Message: msg})
		summary.Completed = false
	}()

	logger.Info("conversion run started", logging.Int(logging.FieldFileCount, total))
	for i, input := range files {
		if !r.ctrl.Running() {
			break
		}
		summary.Results = append(summary.Results, r.runFile(ctx, i, total, input))
	}

	if !r.ctrl.Running() {
		logger.Info("conversion run cancelled",
			logging.Int("succeeded", summary.Count(StateSucceeded)),
			logging.Int("failed", summary.Count(StateFailed)),
		)
		return summary
	}
	summary.Completed = true
	logger.Info("conversion run complete",
		logging.Int("succeeded", summary.Count(StateSucceeded)),
		logging.Int("failed", summary.Count(StateFailed)),
		logging.String(logging.FieldEventType, string(EventComplete)),
	)
	r.emit(Event{
		Type:      EventComplete,
		RunID:     r.runID,
		FileCount: total,
		Overall:   100,
		Message:   fmt.Sprintf("All conversions finished: %d succeeded, %d failed", summary.Count(StateSucceeded), summary.Count(StateFailed)),
	})
	return summary
}

// fileJob is the per-file working set. Only the runner goroutine mutates it.
type fileJob struct {
	index    int
	total    int
	input    string
	output   string
	name     string
	state    FileState
	logger   *slog.Logger
	duration float64
	streams  int
	sampler  *logging.ProgressSampler
}

func (r *Runner) runFile(ctx context.Context, index, total int, input string) FileResult {
	defer r.ctrl.clearSkip()
	started := r.now()
	name := filepath.Base(input)
	job := &fileJob{
		index:   index,
		total:   total,
		input:   input,
		output:  filepath.Join(r.settings.OutputDir, name),
		name:    name,
		state:   StateProbing,
		sampler: logging.NewProgressSampler(5),
	}
	ctx = services.WithFileIndex(ctx, index+1)
	job.logger = logging.WithContext(ctx, r.logger).With(
		logging.String(logging.FieldFileName, name),
		logging.Int(logging.FieldFileCount, total),
	)

	r.emitFile(job, Event{Type: EventFileStarted, Percent: -1, ETA: IndeterminateETA, Overall: OverallPercent(index, 0, total)})
	r.logEvent(job, fmt.Sprintf("Processing %s...", name))

	result := FileResult{Input: input, Output: job.output}
	finish := func(state FileState, err error) FileResult {
		r.transition(job, state)
		result.State = state
		result.Err = err
		result.Elapsed = r.now().Sub(started)
		r.emitFile(job, Event{
			Type:    EventFileFinished,
			Percent: -1,
			Overall: OverallPercent(index, finishedFraction(state), total),
			Elapsed: result.Elapsed,
			Streams: result.Streams,
			Message: string(state),
			Detail:  errorDetail(err),
		})
		return result
	}

	args, err := r.prepare(ctx, job)
	if err != nil {
		r.reportFailure(job, err, err.Error())
		return finish(StateFailed, err)
	}
	if r.ctrl.stopRequested() {
		r.logEvent(job, fmt.Sprintf("Conversion of %s cancelled.", name))
		return finish(StateCancelled, nil)
	}

	r.transition(job, StateEncoding)
	outcome := r.encode(job, args)
	switch {
	case outcome.cancelled:
		r.cleanup(job)
		r.logEvent(job, fmt.Sprintf("Conversion of %s cancelled.", name))
		return finish(StateCancelled, nil)
	case outcome.err != nil:
		r.cleanup(job)
		r.reportFailure(job, outcome.err, outcome.detail)
		return finish(StateFailed, outcome.err)
	}

	result.Streams = r.reportOutput(ctx, job)
	r.logEvent(job, fmt.Sprintf("Successfully converted %s", name))
	r.emitProgress(job, Estimate{Fraction: 1, Source: SignalTime})
	return finish(StateSucceeded, nil)
}

// prepare probes the input and builds the ffmpeg arguments.
func (r *Runner) prepare(ctx context.Context, job *fileJob) ([]string, error) {
	if err := checkPaths(job.input, job.output); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(job.output), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "encoding", "create output dir", filepath.Dir(job.output), err)
	}

	audio, err := r.inspector.AudioStreams(ctx, job.input)
	if err != nil {
		r.warnEvent(job, fmt.Sprintf("Audio probe failed for %s: %v", job.name, err), err)
	}
	video, err := r.inspector.VideoStream(ctx, job.input)
	if err != nil {
		r.warnEvent(job, fmt.Sprintf("Video probe failed for %s: %v", job.name, err), err)
	}
	duration, err := r.inspector.DurationSeconds(ctx, job.input)
	if err != nil {
		r.warnEvent(job, fmt.Sprintf("Could not read duration for %s. Falling back to %s. Error: %v",
			job.name, time.Duration(duration*float64(time.Second)), err), err)
	}
	job.duration = duration

	job.streams = len(audio)
	if job.streams == 0 {
		job.streams = 1
		r.logEvent(job, fmt.Sprintf("Proceeding without probe for %s: assuming %d audio stream(s).", job.name, job.streams))
	} else {
		job.logger.Debug("audio streams discovered", logging.Int("audio_streams", len(audio)))
	}

	plan := PlanVideo(r.settings, video)
	switch {
	case plan.HighBitDepth && plan.Codec == VideoX264:
		r.logEvent(job, fmt.Sprintf("Video is high bit-depth (%s/%s). Transcoding to 8-bit H.264 for Direct Play.", video.PixFmt, video.Profile))
	case plan.Downconvert:
		r.logEvent(job, "Forcing 8-bit H.264 video for Direct Play.")
	}

	args := BuildArgs(job.input, job.output, r.settings, audio, video)
	r.logEvent(job, "Executing: "+CommandLine(r.ffmpeg, args))
	return args, nil
}

func checkPaths(input, output string) error {
	info, err := os.Stat(input)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "encoding", "stat input", input, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "encoding", "stat input", input+" is a directory", nil)
	}
	inAbs, err1 := filepath.Abs(input)
	outAbs, err2 := filepath.Abs(output)
	if err1 == nil && err2 == nil && inAbs == outAbs {
		return services.Wrap(services.ErrConfiguration, "encoding", "resolve output", "output would overwrite input "+input, nil)
	}
	if out, err := os.Stat(output); err == nil && os.SameFile(info, out) {
		return services.Wrap(services.ErrConfiguration, "encoding", "resolve output", "output would overwrite input "+input, nil)
	}
	return nil
}

type encodeOutcome struct {
	cancelled bool
	err       error
	detail    string
}

// encode runs ffmpeg and drives progress until it exits or a stop is
// requested. A stop sends SIGTERM to the process group; the process is killed
// if it outlives the stop timeout.
func (r *Runner) encode(job *fileJob, args []string) encodeOutcome {
	lines := make(chan string)
	quit := make(chan struct{})
	quitOnce := func() func() {
		closed := false
		return func() {
			if !closed {
				closed = true
				close(quit)
			}
		}
	}()
	defer quitOnce()

	stdout := newLineWriter(func(line string) {
		select {
		case lines <- line:
		case <-quit:
		}
	})
	diag := newDiagnostics(diagnosticTailLines, func(line string) {
		r.emitFile(job, Event{Type: EventLog, Level: LevelFFmpeg, Percent: -1, Message: line})
		job.logger.Debug("ffmpeg stderr", logging.String("line", line))
	})

	procCtx, terminate := context.WithCancel(context.Background())
	defer terminate()
	cmd := exec.CommandContext(procCtx, r.ffmpeg, args...)
	configureProcess(cmd)
	cmd.WaitDelay = r.stopTimeout
	cmd.Stdout = stdout
	cmd.Stderr = diag

	if err := cmd.Start(); err != nil {
		wrapped := services.Wrap(services.ErrExternalTool, "encoding", "start ffmpeg", r.ffmpeg, err)
		return encodeOutcome{err: wrapped, detail: err.Error()}
	}
	job.logger.Info("ffmpeg started", logging.Int("pid", cmd.Process.Pid))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var (
		state    JobState
		meter    progressMeter
		lastPoll time.Time
		waitErr  error
	)
	estimator := NewEstimator(job.duration, r.settings.AudioBitrate, job.streams)
	start := r.now()
	r.emitProgress(job, Estimate{})

loop:
	for {
		if r.ctrl.stopRequested() {
			quitOnce()
			terminate()
			<-done
			job.logger.Info("ffmpeg terminated on request")
			return encodeOutcome{cancelled: true}
		}
		select {
		case line := <-lines:
			if key, value, ok := parseProgressLine(line); ok {
				state.Apply(key, value, job.duration)
			}
		case waitErr = <-done:
			break loop
		case <-ticker.C:
		}
		now := r.now()
		state.Elapsed = now.Sub(start)
		if now.Sub(lastPoll) >= r.sizePollInterval {
			lastPoll = now
			if info, err := os.Stat(job.output); err == nil {
				state.ObserveFileSize(info.Size())
			}
		}
		r.emitProgress(job, meter.next(estimator.Estimate(state)))
	}

	diag.Flush()
	if waitErr != nil {
		code := exitCode(waitErr)
		detail := diag.Tail()
		if detail == "" {
			detail = fmt.Sprintf("ffmpeg exited with status %d", code)
		}
		job.logger.Debug("ffmpeg exited", logging.Int("exit_code", code))
		return encodeOutcome{
			err:    services.Wrap(services.ErrExternalTool, "encoding", "ffmpeg", fmt.Sprintf("exit status %d", code), waitErr),
			detail: detail,
		}
	}
	return encodeOutcome{}
}

// reportOutput logs the achieved bitrate of each output audio stream.
func (r *Runner) reportOutput(ctx context.Context, job *fileJob) []ffprobe.AudioStream {
	streams, err := r.inspector.OutputBitrates(ctx, job.output)
	if err != nil {
		r.warnEvent(job, fmt.Sprintf("Could not read output bitrates for %s: %v", job.name, err), err)
		return nil
	}
	for _, s := range streams {
		rate := "unknown"
		if s.BitRate != nil {
			rate = fmt.Sprintf("%dk", *s.BitRate/1000)
		}
		codec := s.CodecName
		if codec == "" {
			codec = "unknown"
		}
		r.logEvent(job, fmt.Sprintf("Output audio stream %d -> %s %dch @ %s", s.Index, codec, s.Channels, rate))
	}
	return streams
}

func (r *Runner) reportFailure(job *fileJob, err error, detail string) {
	msg := fmt.Sprintf("Error processing %s", job.name)
	logging.ErrorWithContext(job.logger, "file conversion failed", string(EventError),
		logging.Error(err),
		logging.String("detail", detail),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
	)
	r.emitFile(job, Event{Type: EventError, Percent: -1, Message: msg, Detail: detail})
}

func (r *Runner) cleanup(job *fileJob) {
	if err := removePartial(job.output); err != nil {
		r.warnEvent(job, fmt.Sprintf("Could not remove partial output %s: %v", job.output, err), err)
	}
}

func (r *Runner) transition(job *fileJob, to FileState) {
	if !CanTransition(job.state, to) {
		job.logger.Error("illegal file state transition",
			logging.String("from", string(job.state)),
			logging.String("to", string(to)),
		)
	}
	job.state = to
	job.logger = job.logger.With(logging.String(logging.FieldStage, string(to)))
}

func (r *Runner) emitProgress(job *fileJob, est Estimate) {
	pct := est.Percent()
	e := Event{
		Type:     EventProgress,
		Percent:  pct,
		Fraction: est.Fraction,
		ETA:      est.ETA(),
		Source:   est.Source,
		Overall:  OverallPercent(job.index, est.Fraction, job.total),
	}
	if job.sampler.ShouldLog(float64(pct), string(job.state)) {
		job.logger.Info("encoding progress",
			logging.Int(logging.FieldProgressPercent, pct),
			logging.String(logging.FieldProgressETA, e.ETA),
			logging.Int(logging.FieldOverallPercent, e.Overall),
			logging.String("signal", est.Source.String()),
		)
	}
	r.emitFile(job, e)
}

func (r *Runner) logEvent(job *fileJob, msg string) {
	job.logger.Info(msg)
	r.emitFile(job, Event{Type: EventLog, Level: LevelInfo, Percent: -1, Message: msg})
}

func (r *Runner) warnEvent(job *fileJob, msg string, err error) {
	logging.WarnWithContext(job.logger, msg, "probe_degraded",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
	)
	r.emitFile(job, Event{Type: EventLog, Level: LevelWarn, Percent: -1, Message: msg})
}

func (r *Runner) emitFile(job *fileJob, e Event) {
	e.FileIndex = job.index + 1
	e.FileCount = job.total
	e.FileName = job.name
	e.Input = job.input
	e.Output = job.output
	e.State = job.state
	r.emit(e)
}

func (r *Runner) emit(e Event) {
	e.Seq = r.seq.Add(1)
	e.RunID = r.runID
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	r.sink.Emit(e)
}

func finishedFraction(state FileState) float64 {
	if state == StateSucceeded {
		return 1
	}
	return 0
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.String()
	}
	return err.Error()
}

package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"aacnorm/internal/logging"
	"aacnorm/internal/services"
)

// FallbackDuration is reported when ffprobe cannot produce a duration. ETA
// math downstream assumes this magnitude.
const FallbackDuration = 3600.0

// AudioStream is one discovered audio stream. BitRate is only populated when
// probing encoded output and stays nil when ffprobe omits it.
type AudioStream struct {
	Index      int
	CodecName  string
	Channels   int
	SampleRate int
	BitRate    *int64
}

// VideoStream describes the first video stream of a file. The zero value
// means no video stream was found or probing failed.
type VideoStream struct {
	PixFmt    string
	CodecName string
	Profile   string
	Level     int
}

// HighBitDepth applies IsHighBitDepth to the descriptor.
func (v VideoStream) HighBitDepth() bool {
	return IsHighBitDepth(v.PixFmt, v.Profile)
}

// CommandRunner executes ffprobe and returns its standard output. A non-nil
// error with non-empty output means the process exited non-zero.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// Inspector queries ffprobe for the stream metadata the encoder needs.
// Every method degrades to a documented default instead of failing the file;
// the returned error only explains the degradation.
type Inspector struct {
	binary string
	logger *slog.Logger
	run    CommandRunner
}

// NewInspector builds an inspector around the given ffprobe binary.
func NewInspector(binary string, logger *slog.Logger) *Inspector {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return &Inspector{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "ffprobe"),
		run:    execRunner,
	}
}

// SetRunnerForTests swaps the command runner and returns a restore function.
func (i *Inspector) SetRunnerForTests(run CommandRunner) func() {
	prev := i.run
	if run == nil {
		run = execRunner
	}
	i.run = run
	return func() { i.run = prev }
}

func execRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if stderr := strings.TrimSpace(string(exitErr.Stderr)); stderr != "" {
			return out, fmt.Errorf("%w: %s", err, stderr)
		}
	}
	return out, err
}

type audioStrategy struct {
	name    string
	args    func(path string) []string
	checked bool
	filter  bool
}

// audioStrategies run strictest first. The last one tolerates a non-zero
// exit as long as stdout still decodes.
var audioStrategies = []audioStrategy{
	{
		name: "select audio entries",
		args: func(path string) []string {
			return []string{"-v", "quiet", "-print_format", "json",
				"-show_entries", "stream=index:codec_type:codec_name:channels:sample_rate",
				"-select_streams", "a", path}
		},
		checked: true,
	},
	{
		name: "all streams",
		args: func(path string) []string {
			return []string{"-v", "error", "-of", "json", "-show_streams", path}
		},
		checked: true,
		filter:  true,
	},
	{
		name: "all streams unchecked",
		args: func(path string) []string {
			return []string{"-show_streams", "-of", "json", path}
		},
		filter: true,
	},
}

// AudioStreams lists the audio streams of path. When every strategy fails
// the result is empty and callers should assume a single stream.
func (i *Inspector) AudioStreams(ctx context.Context, path string) ([]AudioStream, error) {
	logger := logging.WithContext(ctx, i.logger)
	attempts := make([]error, 0, len(audioStrategies))
	for n, strategy := range audioStrategies {
		streams, err := i.runAudioStrategy(ctx, strategy, path)
		if err == nil {
			return streams, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("audio probe strategy failed",
			logging.String(logging.FieldEventType, "audio_probe_fallback"),
			logging.Int("attempt", n+1),
			logging.String("strategy", strategy.name),
			logging.String(logging.FieldFileName, filepath.Base(path)),
			logging.Error(err),
		)
		attempts = append(attempts, fmt.Errorf("%s: %w", strategy.name, err))
	}
	return nil, services.Wrap(services.ErrExternalTool, "ffprobe", "audio streams", filepath.Base(path), errors.Join(attempts...))
}

func (i *Inspector) runAudioStrategy(ctx context.Context, strategy audioStrategy, path string) ([]AudioStream, error) {
	out, err := i.run(ctx, i.binary, strategy.args(path)...)
	if err != nil && (strategy.checked || len(strings.TrimSpace(string(out))) == 0) {
		return nil, err
	}
	result, decodeErr := decode(out)
	if decodeErr != nil {
		return nil, decodeErr
	}
	streams := result.Streams
	if strategy.filter {
		streams = result.AudioStreams()
	}
	return toAudioStreams(streams), nil
}

func toAudioStreams(streams []Stream) []AudioStream {
	out := make([]AudioStream, 0, len(streams))
	for _, s := range streams {
		rate, _ := strconv.Atoi(strings.TrimSpace(s.SampleRate))
		out = append(out, AudioStream{
			Index:      s.Index,
			CodecName:  s.CodecName,
			Channels:   s.Channels,
			SampleRate: rate,
			BitRate:    parseOptionalInt(s.BitRate),
		})
	}
	return out
}

// VideoStream describes the first video stream of path.
func (i *Inspector) VideoStream(ctx context.Context, path string) (VideoStream, error) {
	out, err := i.run(ctx, i.binary, "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=pix_fmt,codec_name,profile,level", "-of", "json", path)
	if err != nil {
		return VideoStream{}, services.Wrap(services.ErrExternalTool, "ffprobe", "video stream", filepath.Base(path), err)
	}
	result, err := decode(out)
	if err != nil {
		return VideoStream{}, services.Wrap(services.ErrValidation, "ffprobe", "video stream", filepath.Base(path), err)
	}
	if len(result.Streams) == 0 {
		return VideoStream{}, nil
	}
	s := result.Streams[0]
	return VideoStream{PixFmt: s.PixFmt, CodecName: s.CodecName, Profile: s.Profile, Level: s.Level}, nil
}

// DurationSeconds returns the container duration, or FallbackDuration when
// it cannot be read.
func (i *Inspector) DurationSeconds(ctx context.Context, path string) (float64, error) {
	out, err := i.run(ctx, i.binary, "-v", "error", "-show_entries", "format=duration",
		"-of", "default=nw=1:nk=1", path)
	if err != nil {
		return FallbackDuration, services.Wrap(services.ErrExternalTool, "ffprobe", "duration", filepath.Base(path), err)
	}
	value := strings.TrimSpace(string(out))
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return FallbackDuration, services.Wrap(services.ErrValidation, "ffprobe", "duration", fmt.Sprintf("unparseable duration %q", value), err)
	}
	if seconds <= 0 {
		return FallbackDuration, services.Wrap(services.ErrValidation, "ffprobe", "duration", fmt.Sprintf("non-positive duration %q", value), nil)
	}
	return seconds, nil
}

// OutputBitrates reports codec, channel count and achieved bitrate for each
// audio stream of an encoded file.
func (i *Inspector) OutputBitrates(ctx context.Context, path string) ([]AudioStream, error) {
	out, err := i.run(ctx, i.binary, "-v", "error", "-select_streams", "a",
		"-show_entries", "stream=index,bit_rate,codec_name,channels", "-of", "json", path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffprobe", "output bitrates", filepath.Base(path), err)
	}
	result, err := decode(out)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ffprobe", "output bitrates", filepath.Base(path), err)
	}
	return toAudioStreams(result.Streams), nil
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"aacnorm/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.History.Path = filepath.Join(base, "state", "history.db")
	cfgVal.Runner.PollIntervalMillis = 10
	cfgVal.Runner.StopTimeoutMillis = 500

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAudio overrides the target audio layout.
func WithAudio(bitrate string, channels, sampleRate int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audio.Bitrate = bitrate
		b.cfg.Audio.Channels = channels
		b.cfg.Audio.SampleRate = sampleRate
	}
}

// WithVideoCodec sets the video codec and the force 8-bit toggle.
func WithVideoCodec(codec string, force8Bit bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Video.Codec = codec
		b.cfg.Video.Force8Bit = force8Bit
	}
}

// WithHistoryDisabled turns off the run history database.
func WithHistoryDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, binDir, name, "exit 0\n")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WithFFmpegScript installs an ffmpeg stub with the given shell body and
// points the config at it.
func WithFFmpegScript(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tools.FFmpeg = WriteScript(b.t, filepath.Join(b.baseDir, "bin"), "ffmpeg", body)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"aacnorm/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLog := filepath.Join(tempHome, ".local", "share", "aacnorm", "logs")
	if cfg.Paths.LogDir != wantLog {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLog)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) || filepath.Base(cfg.Paths.OutputDir) != "converted" {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Audio.Bitrate != "224k" || cfg.Audio.Channels != 2 || cfg.Audio.SampleRate != 48000 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.Audio.MetadataTitle != "AAC Stereo" {
		t.Fatalf("unexpected metadata title: %q", cfg.Audio.MetadataTitle)
	}
	if cfg.Video.Codec != "copy" || !cfg.Video.Force8Bit || cfg.Video.X264CRF != 18 || cfg.Video.X264Preset != "slow" {
		t.Fatalf("unexpected video defaults: %+v", cfg.Video)
	}
	if cfg.Subtitles.Codec != "copy" {
		t.Fatalf("unexpected subtitle codec: %q", cfg.Subtitles.Codec)
	}
	if cfg.PollInterval() != 50*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.SizePollInterval() != 250*time.Millisecond {
		t.Fatalf("unexpected size poll interval: %s", cfg.SizePollInterval())
	}
	if cfg.StopTimeout() != time.Second {
		t.Fatalf("unexpected stop timeout: %s", cfg.StopTimeout())
	}
	if cfg.HistoryPath() != filepath.Join(cfg.Paths.StateDir, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "aacnorm.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Audio struct {
			Bitrate  string `toml:"bitrate"`
			Channels int    `toml:"channels"`
		} `toml:"audio"`
		Video struct {
			Codec string `toml:"codec"`
		} `toml:"video"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Audio.Bitrate = " 320 K "
	custom.Audio.Channels = 6
	custom.Video.Codec = "LIBX265"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempDir, "out") {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if cfg.Audio.Bitrate != "320k" {
		t.Fatalf("expected normalized bitrate 320k, got %q", cfg.Audio.Bitrate)
	}
	if cfg.Audio.Channels != 6 {
		t.Fatalf("expected 6 channels, got %d", cfg.Audio.Channels)
	}
	if cfg.Video.Codec != "libx265" {
		t.Fatalf("expected lower-cased codec, got %q", cfg.Video.Codec)
	}
	// Unset sections keep defaults.
	if cfg.Audio.SampleRate != 48000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
}

func TestEnvOverridesToolBinaries(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AACNORM_FFMPEG", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("AACNORM_FFPROBE", "/opt/ffmpeg/bin/ffprobe")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary %q", cfg.FFmpegBinary())
	}
	if cfg.FFprobeBinary() != "/opt/ffmpeg/bin/ffprobe" {
		t.Fatalf("unexpected ffprobe binary %q", cfg.FFprobeBinary())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "bitrate garbage", mutate: func(c *config.Config) { c.Audio.Bitrate = "loud" }, wantErr: "audio.bitrate"},
		{name: "bitrate zero", mutate: func(c *config.Config) { c.Audio.Bitrate = "0k" }, wantErr: "greater than zero"},
		{name: "channels", mutate: func(c *config.Config) { c.Audio.Channels = 0 }, wantErr: "audio.channels"},
		{name: "sample rate", mutate: func(c *config.Config) { c.Audio.SampleRate = 12345 }, wantErr: "audio.sample_rate"},
		{name: "video codec", mutate: func(c *config.Config) { c.Video.Codec = "vp9" }, wantErr: "video.codec"},
		{name: "crf", mutate: func(c *config.Config) { c.Video.X264CRF = 60 }, wantErr: "video.x264_crf"},
		{name: "preset", mutate: func(c *config.Config) { c.Video.X264Preset = "warp" }, wantErr: "video.x264_preset"},
		{name: "subtitles", mutate: func(c *config.Config) { c.Subtitles.Codec = "ass" }, wantErr: "subtitles.codec"},
		{name: "poll", mutate: func(c *config.Config) { c.Runner.PollIntervalMillis = -1 }, wantErr: "runner.poll_interval_ms"},
		{name: "log format", mutate: func(c *config.Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q missing %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Audio.Bitrate != "224k" {
		t.Fatalf("unexpected sample bitrate %q", cfg.Audio.Bitrate)
	}
}

func TestRenormalizeAppliesOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Audio.Bitrate = " 192 K "
	cfg.Video.Codec = "LIBX264"
	if err := cfg.Renormalize(); err != nil {
		t.Fatalf("Renormalize: %v", err)
	}
	if cfg.Audio.Bitrate != "192k" || cfg.Video.Codec != "libx264" {
		t.Fatalf("unexpected normalized values %q %q", cfg.Audio.Bitrate, cfg.Video.Codec)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) {
		t.Fatalf("output dir not absolute: %s", cfg.Paths.OutputDir)
	}

	cfg.Audio.Channels = 12
	if err := cfg.Renormalize(); err == nil {
		t.Fatal("expected validation error for 12 channels")
	}
}

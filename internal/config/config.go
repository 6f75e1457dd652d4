package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Audio describes the normalized AAC layout every audio track is converted to.
type Audio struct {
	Bitrate       string `toml:"bitrate"`
	Channels      int    `toml:"channels"`
	SampleRate    int    `toml:"sample_rate"`
	MetadataTitle string `toml:"metadata_title"`
}

// Video controls how the video stream is carried into the output.
type Video struct {
	// Codec is "copy", "libx264" or "libx265".
	Codec string `toml:"codec"`
	// Force8Bit re-encodes to 8-bit H.264 regardless of the source.
	Force8Bit  bool   `toml:"force_8bit"`
	X264CRF    int    `toml:"x264_crf"`
	X264Preset string `toml:"x264_preset"`
}

// Subtitles controls subtitle stream handling.
type Subtitles struct {
	Codec string `toml:"codec"`
}

// Tools names the external binaries.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Runner contains timing knobs for the encode loop.
type Runner struct {
	PollIntervalMillis     int `toml:"poll_interval_ms"`
	SizePollIntervalMillis int `toml:"size_poll_interval_ms"`
	StopTimeoutMillis      int `toml:"stop_timeout_ms"`
}

// History contains configuration for the run history database.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Watch contains configuration for `aacnorm watch`.
type Watch struct {
	SettleSeconds int `toml:"settle_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for aacnorm.
//
// Configuration sections by subsystem:
//   - Paths: output, log, and state directories
//   - Audio: target AAC bitrate, channels, sample rate, and track title
//   - Video: pass-through or re-encode policy
//   - Subtitles: subtitle codec selector
//   - Tools: ffmpeg/ffprobe binaries
//   - Runner: encode loop polling and stop timeouts
//   - History: sqlite run history
//   - Watch: directory watch settling
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Audio     Audio     `toml:"audio"`
	Video     Video     `toml:"video"`
	Subtitles Subtitles `toml:"subtitles"`
	Tools     Tools     `toml:"tools"`
	Runner    Runner    `toml:"runner"`
	History   History   `toml:"history"`
	Watch     Watch     `toml:"watch"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/aacnorm/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("aacnorm.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories. The output
// directory is created by the runner before each file.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for encoding.
func (c *Config) FFmpegBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFmpeg) == "" {
		return defaultFFmpegBinary
	}
	return c.Tools.FFmpeg
}

// FFprobeBinary returns the ffprobe executable used for stream inspection.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFprobe) == "" {
		return defaultFFprobeBinary
	}
	return c.Tools.FFprobe
}

// HistoryPath returns the sqlite database location.
func (c *Config) HistoryPath() string {
	if strings.TrimSpace(c.History.Path) != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// PollInterval is the encode loop idle sleep.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Runner.PollIntervalMillis) * time.Millisecond
}

// SizePollInterval is the minimum spacing between output file size checks.
func (c *Config) SizePollInterval() time.Duration {
	return time.Duration(c.Runner.SizePollIntervalMillis) * time.Millisecond
}

// StopTimeout bounds how long a cancelled encoder may take to exit before it is killed.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Runner.StopTimeoutMillis) * time.Millisecond
}

// WatchSettle is how long a watched file must keep a stable size before it is queued.
func (c *Config) WatchSettle() time.Duration {
	return time.Duration(c.Watch.SettleSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAudio()
	c.normalizeVideo()
	c.normalizeTools()
	c.normalizeRunner()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAudio() {
	c.Audio.Bitrate = strings.ToLower(strings.Join(strings.Fields(c.Audio.Bitrate), ""))
	if c.Audio.Bitrate == "" {
		c.Audio.Bitrate = defaultAudioBitrate
	}
	c.Audio.MetadataTitle = strings.TrimSpace(c.Audio.MetadataTitle)
}

func (c *Config) normalizeVideo() {
	c.Video.Codec = strings.ToLower(strings.TrimSpace(c.Video.Codec))
	if c.Video.Codec == "" {
		c.Video.Codec = defaultVideoCodec
	}
	c.Video.X264Preset = strings.ToLower(strings.TrimSpace(c.Video.X264Preset))
	if c.Video.X264Preset == "" {
		c.Video.X264Preset = defaultX264Preset
	}
	c.Subtitles.Codec = strings.ToLower(strings.TrimSpace(c.Subtitles.Codec))
	if c.Subtitles.Codec == "" {
		c.Subtitles.Codec = defaultSubtitleCodec
	}
}

func (c *Config) normalizeTools() {
	if value, ok := os.LookupEnv("AACNORM_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFmpeg = value
	}
	if value, ok := os.LookupEnv("AACNORM_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFprobe = value
	}
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}
}

func (c *Config) normalizeRunner() {
	if c.Runner.PollIntervalMillis == 0 {
		c.Runner.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Runner.SizePollIntervalMillis == 0 {
		c.Runner.SizePollIntervalMillis = defaultSizePollIntervalMillis
	}
	if c.Runner.StopTimeoutMillis == 0 {
		c.Runner.StopTimeoutMillis = defaultStopTimeoutMillis
	}
	if c.Watch.SettleSeconds == 0 {
		c.Watch.SettleSeconds = defaultWatchSettleSeconds
	}
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		return nil
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// Renormalize re-applies normalization and validation after fields were
// changed in code, such as command-line overrides.
func (c *Config) Renormalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAudio()
	c.normalizeVideo()
	return c.Validate()
}

package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var bitratePattern = regexp.MustCompile(`^([0-9]+(\.[0-9]*)?|\.[0-9]+)[km]?$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAudio() error {
	if !bitratePattern.MatchString(c.Audio.Bitrate) {
		return fmt.Errorf("audio.bitrate %q must be a number with an optional k or m suffix (e.g. %s)", c.Audio.Bitrate, strings.Join(Bitrates[:3], ", "))
	}
	if strings.Trim(c.Audio.Bitrate, "0.km") == "" {
		return errors.New("audio.bitrate must be greater than zero")
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 8 {
		return errors.New("audio.channels must be between 1 and 8")
	}
	if !slices.Contains(SampleRates, c.Audio.SampleRate) {
		return fmt.Errorf("audio.sample_rate %d is not supported by the AAC encoder", c.Audio.SampleRate)
	}
	return nil
}

func (c *Config) validateVideo() error {
	if !slices.Contains(VideoCodecs, c.Video.Codec) {
		return fmt.Errorf("video.codec must be one of %s", strings.Join(VideoCodecs, ", "))
	}
	if c.Video.X264CRF < 0 || c.Video.X264CRF > 51 {
		return errors.New("video.x264_crf must be between 0 and 51")
	}
	if !slices.Contains(X264Presets, c.Video.X264Preset) {
		return fmt.Errorf("video.x264_preset must be one of %s", strings.Join(X264Presets, ", "))
	}
	if !slices.Contains(SubtitleCodecs, c.Subtitles.Codec) {
		return fmt.Errorf("subtitles.codec must be one of %s", strings.Join(SubtitleCodecs, ", "))
	}
	return nil
}

func (c *Config) validateRunner() error {
	if c.Runner.PollIntervalMillis < 0 {
		return errors.New("runner.poll_interval_ms must be positive")
	}
	if c.Runner.SizePollIntervalMillis < 0 {
		return errors.New("runner.size_poll_interval_ms must be positive")
	}
	if c.Runner.StopTimeoutMillis < 0 {
		return errors.New("runner.stop_timeout_ms must be positive")
	}
	if c.Watch.SettleSeconds < 0 {
		return errors.New("watch.settle_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

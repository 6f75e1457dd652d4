package encoding

import (
	"aacnorm/internal/config"
)

// VideoCodec selects how the video stream is written.
type VideoCodec string

const (
	VideoCopy VideoCodec = "copy"
	VideoX264 VideoCodec = "libx264"
	VideoX265 VideoCodec = "libx265"
)

// Settings is the immutable per-run conversion recipe.
type Settings struct {
	OutputDir       string
	AudioBitrate    string
	AudioChannels   int
	AudioSampleRate int
	VideoCodec      VideoCodec
	SubtitleCodec   string
	Force8Bit       bool
	X264CRF         int
	X264Preset      string
	MetadataTitle   string
}

// SettingsFromConfig snapshots the conversion-relevant parts of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return Settings{
		OutputDir:       cfg.Paths.OutputDir,
		AudioBitrate:    cfg.Audio.Bitrate,
		AudioChannels:   cfg.Audio.Channels,
		AudioSampleRate: cfg.Audio.SampleRate,
		VideoCodec:      VideoCodec(cfg.Video.Codec),
		SubtitleCodec:   cfg.Subtitles.Codec,
		Force8Bit:       cfg.Video.Force8Bit,
		X264CRF:         cfg.Video.X264CRF,
		X264Preset:      cfg.Video.X264Preset,
		MetadataTitle:   cfg.Audio.MetadataTitle,
	}
}

package config

const (
	defaultOutputDir              = "converted"
	defaultLogDir                 = "~/.local/share/aacnorm/logs"
	defaultStateDir               = "~/.local/share/aacnorm"
	defaultAudioBitrate           = "224k"
	defaultAudioChannels          = 2
	defaultAudioSampleRate        = 48000
	defaultMetadataTitle          = "AAC Stereo"
	defaultVideoCodec             = "copy"
	defaultForce8Bit              = true
	defaultX264CRF                = 18
	defaultX264Preset             = "slow"
	defaultSubtitleCodec          = "copy"
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultPollIntervalMillis     = 50
	defaultSizePollIntervalMillis = 250
	defaultStopTimeoutMillis      = 1000
	defaultHistoryEnabled         = true
	defaultWatchSettleSeconds     = 5
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Bitrates lists the bitrate choices offered in help text.
var Bitrates = []string{"128k", "160k", "192k", "224k", "256k", "320k", "384k", "448k", "512k", "640k"}

// X264Presets lists the accepted libx264 presets, slowest first.
var X264Presets = []string{"placebo", "veryslow", "slower", "slow", "medium", "fast", "faster", "veryfast", "superfast", "ultrafast"}

// VideoCodecs lists the accepted video codec selectors.
var VideoCodecs = []string{"copy", "libx264", "libx265"}

// SubtitleCodecs lists the accepted subtitle codec selectors.
var SubtitleCodecs = []string{"copy", "mov_text"}

// SampleRates lists the sample rates the AAC encoder accepts.
var SampleRates = []int{8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000, 64000, 88200, 96000}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Audio: Audio{
			Bitrate:       defaultAudioBitrate,
			Channels:      defaultAudioChannels,
			SampleRate:    defaultAudioSampleRate,
			MetadataTitle: defaultMetadataTitle,
		},
		Video: Video{
			Codec:      defaultVideoCodec,
			Force8Bit:  defaultForce8Bit,
			X264CRF:    defaultX264CRF,
			X264Preset: defaultX264Preset,
		},
		Subtitles: Subtitles{
			Codec: defaultSubtitleCodec,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		Runner: Runner{
			PollIntervalMillis:     defaultPollIntervalMillis,
			SizePollIntervalMillis: defaultSizePollIntervalMillis,
			StopTimeoutMillis:      defaultStopTimeoutMillis,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Watch: Watch{
			SettleSeconds: defaultWatchSettleSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

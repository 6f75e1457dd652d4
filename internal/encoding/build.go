package encoding

import (
	"strconv"
	"strings"

	"aacnorm/internal/media/ffprobe"
)

const (
	audioCodec = "aac"
	aacCoder   = "twoloop"
)

// VideoPlan records the video codec decision for one file.
type VideoPlan struct {
	Codec VideoCodec
	// Downconvert is set when the requested codec was replaced by libx264 to
	// produce 8-bit output.
	Downconvert  bool
	HighBitDepth bool
}

// PlanVideo applies the direct-play compatibility policy. Forced 8-bit output
// always uses libx264; a copied high bit-depth source is re-encoded with it.
func PlanVideo(s Settings, video ffprobe.VideoStream) VideoPlan {
	plan := VideoPlan{Codec: s.VideoCodec, HighBitDepth: video.HighBitDepth()}
	if plan.Codec == "" {
		plan.Codec = VideoCopy
	}
	if s.Force8Bit || (plan.Codec == VideoCopy && plan.HighBitDepth) {
		plan.Downconvert = plan.Codec != VideoX264
		plan.Codec = VideoX264
	}
	return plan
}

// BuildArgs assembles the ffmpeg argument list for one file. The result does
// not include the binary itself. Identical inputs always produce identical
// output.
func BuildArgs(input, output string, s Settings, audio []ffprobe.AudioStream, video ffprobe.VideoStream) []string {
	plan := PlanVideo(s, video)
	args := []string{
		"-y", "-nostdin", "-hide_banner",
		"-progress", "pipe:1", "-nostats",
		"-loglevel", "error",
		"-i", input,
		"-map", "0",
		"-c:v", string(plan.Codec),
	}
	args = append(args, videoArgs(plan.Codec, s)...)

	subtitle := strings.TrimSpace(s.SubtitleCodec)
	if subtitle == "" {
		subtitle = "copy"
	}
	args = append(args, "-c:s", subtitle, "-c:t", "copy", "-c:d", "copy")
	args = append(args, audioArgs(s, len(audio))...)
	args = append(args, "-aac_coder", aacCoder)
	if title := strings.TrimSpace(s.MetadataTitle); title != "" {
		args = append(args, "-metadata:s:a", "title="+title)
	}
	return append(args, output)
}

func videoArgs(codec VideoCodec, s Settings) []string {
	switch codec {
	case VideoX264:
		preset := strings.TrimSpace(s.X264Preset)
		if preset == "" {
			preset = "slow"
		}
		return []string{
			"-pix_fmt", "yuv420p",
			"-profile:v", "high",
			"-level", "4.1",
			"-crf", strconv.Itoa(s.X264CRF),
			"-preset", preset,
			"-vf", "format=yuv420p",
		}
	case VideoX265:
		return []string{"-pix_fmt", "yuv420p"}
	default:
		return nil
	}
}

// audioArgs emits per-stream options addressed by output audio position, or
// global options when probing found nothing.
func audioArgs(s Settings, streams int) []string {
	bitrate := s.AudioBitrate
	channels := strconv.Itoa(s.AudioChannels)
	rate := strconv.Itoa(s.AudioSampleRate)
	if streams == 0 {
		return []string{
			"-c:a", audioCodec,
			"-b:a", bitrate,
			"-ac", channels,
			"-ar", rate,
		}
	}
	args := make([]string, 0, streams*8)
	for i := 0; i < streams; i++ {
		pos := strconv.Itoa(i)
		args = append(args,
			"-c:a:"+pos, audioCodec,
			"-b:a:"+pos, bitrate,
			"-ac:a:"+pos, channels,
			"-ar:a:"+pos, rate,
		)
	}
	return args
}

// CommandLine renders a command for display, quoting arguments the shell
// would split or expand.
func CommandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(binary))
	for _, arg := range args {
		parts = append(parts, shellQuote(arg))
	}
	return strings.Join(parts, " ")
}

func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	if strings.IndexFunc(arg, needsShellQuote) < 0 {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'"'"'`) + "'"
}

func needsShellQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("@%+=:,./-_", r)
}

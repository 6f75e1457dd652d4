package deps

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

const probeTimeout = 5 * time.Second

// FFmpegRequirements lists the binaries a conversion run executes.
func FFmpegRequirements(ffmpeg, ffprobe string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpeg,
			Description: "Required for audio normalization",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobe,
			Description: "Required for stream inspection",
		},
	}
}

// ProbeVersion returns the first line of `<binary> -version`, or "" when the
// binary does not answer within the probe timeout.
func ProbeVersion(ctx context.Context, binary string) string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

// CheckEncoders reports which of the named encoders the ffmpeg build offers.
func CheckEncoders(ctx context.Context, ffmpeg string, names ...string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, err
	}
	return parseEncoders(out, names), nil
}

// parseEncoders scans `ffmpeg -encoders` output. Encoder rows start with a
// six character capability column followed by the encoder name.
func parseEncoders(out []byte, names []string) map[string]bool {
	result := make(map[string]bool, len(names))
	for _, name := range names {
		result[name] = false
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		if _, ok := result[fields[1]]; ok {
			result[fields[1]] = true
		}
	}
	return result
}

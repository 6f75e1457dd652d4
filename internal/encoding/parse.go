package encoding

import (
	"math"
	"strconv"
	"strings"
)

// ParseBitrate converts a bitrate such as "224k", "1.5M" or "128000" to bits
// per second. Whitespace is ignored and the k/m suffix is case-insensitive.
// Anything else yields 0.
func ParseBitrate(text string) int64 {
	s := strings.ToLower(strings.Join(strings.Fields(text), ""))
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult = 1_000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult = 1_000_000
		s = strings.TrimSuffix(s, "m")
	}
	if !isDecimal(s) {
		return 0
	}
	value, ok := parseNonNegativeFloat(s)
	if !ok {
		return 0
	}
	bps := math.Round(value * mult)
	if bps >= math.MaxInt64 {
		return 0
	}
	return int64(bps)
}

// ParseSpeed converts ffmpeg's speed field ("2.5x") to a multiplier. Unknown
// values such as "N/A" yield 0.
func ParseSpeed(text string) float64 {
	s := strings.ToLower(strings.Join(strings.Fields(text), ""))
	s = strings.TrimSuffix(s, "x")
	value, ok := parseNonNegativeFloat(s)
	if !ok {
		return 0
	}
	return value
}

// ParseOutTime converts ffmpeg's H:MM:SS.micro timestamp to seconds.
func ParseOutTime(text string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, false
	}
	total := float64(hours)*3600 + float64(minutes)*60 + seconds
	if total < 0 {
		return 0, false
	}
	return total, true
}

// ParseOutTimeMicros converts ffmpeg's out_time_ms field, which despite the
// name carries microseconds.
func ParseOutTimeMicros(text string) (float64, bool) {
	micros, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || micros < 0 {
		return 0, false
	}
	return float64(micros) / 1_000_000, true
}

// isDecimal reports whether s is digits with at most one '.', and at least
// one digit.
func isDecimal(s string) bool {
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func parseNonNegativeFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, false
	}
	return value, true
}

// parseProgressLine splits one line of ffmpeg -progress output.
func parseProgressLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	key, value, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), true
}

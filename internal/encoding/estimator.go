package encoding

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// IndeterminateETA is shown until any progress signal is available.
const IndeterminateETA = "calculating…"

// defaultStreamBitrate is assumed per stream when the configured bitrate
// cannot be parsed.
const defaultStreamBitrate = 192_000

// estimatedCeiling caps size and speed based fractions so only a timestamp or
// process exit can report completion.
const estimatedCeiling = 0.99

// Signal names the progress source an estimate came from.
type Signal int

const (
	SignalNone Signal = iota
	SignalTime
	SignalSize
	SignalSpeed
)

func (s Signal) String() string {
	switch s {
	case SignalTime:
		return "time"
	case SignalSize:
		return "size"
	case SignalSpeed:
		return "speed"
	default:
		return "none"
	}
}

// JobState accumulates the progress signals observed for one encode.
type JobState struct {
	Elapsed   time.Duration
	OutTime   float64
	TimeKnown bool
	TotalSize int64
	Speed     float64
}

// Apply folds one key=value pair from ffmpeg's progress stream into the state.
// It reports whether the key was recognised and its value accepted.
func (s *JobState) Apply(key, value string, duration float64) bool {
	switch key {
	case "out_time_ms":
		t, ok := ParseOutTimeMicros(value)
		if !ok {
			return false
		}
		s.observeTime(t, duration)
	case "out_time":
		t, ok := ParseOutTime(value)
		if !ok {
			return false
		}
		s.observeTime(t, duration)
	case "total_size":
		size, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false
		}
		s.ObserveFileSize(size)
	case "speed":
		s.Speed = ParseSpeed(value)
	default:
		return false
	}
	return true
}

func (s *JobState) observeTime(t, duration float64) {
	if duration > 0 {
		t = math.Min(t, duration)
	}
	s.OutTime = t
	s.TimeKnown = true
}

// ObserveFileSize records a size sample from the encoder or the filesystem.
// The larger of the known and observed sizes wins.
func (s *JobState) ObserveFileSize(size int64) {
	if size > s.TotalSize {
		s.TotalSize = size
	}
}

// Estimate is a point-in-time progress reading.
type Estimate struct {
	Fraction float64
	// Remaining is the estimated seconds left.
	Remaining float64
	Source    Signal
}

// Indeterminate reports whether no signal was usable.
func (e Estimate) Indeterminate() bool { return e.Source == SignalNone }

// Percent returns the fraction as 0..100, or -1 when indeterminate.
func (e Estimate) Percent() int {
	if e.Indeterminate() {
		return -1
	}
	return int(clamp(e.Fraction, 0, 1) * 100)
}

// ETA renders the remaining time or IndeterminateETA.
func (e Estimate) ETA() string {
	if e.Indeterminate() {
		return IndeterminateETA
	}
	return FormatETA(e.Remaining)
}

// Estimator converts a JobState into an Estimate. Duration is the source
// length in seconds and TargetBPS the expected aggregate audio bitrate.
type Estimator struct {
	Duration  float64
	TargetBPS int64
}

// NewEstimator builds an estimator for a file with the given number of audio
// streams encoded at bitrate.
func NewEstimator(duration float64, bitrate string, streams int) Estimator {
	return Estimator{Duration: duration, TargetBPS: TargetBitrate(bitrate, streams)}
}

// Estimate applies the signal precedence: time, then size, then speed.
func (e Estimator) Estimate(s JobState) Estimate {
	d := e.Duration
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return Estimate{}
	}
	switch {
	case s.TimeKnown:
		return Estimate{
			Fraction:  clamp(s.OutTime/d, 0, 1),
			Remaining: math.Max(d-s.OutTime, 0),
			Source:    SignalTime,
		}
	case s.TotalSize > 0 && e.TargetBPS > 0:
		processed := float64(s.TotalSize) * 8 / float64(e.TargetBPS)
		return Estimate{
			Fraction:  clamp(processed/d, 0, estimatedCeiling),
			Remaining: math.Max(d-processed, 0),
			Source:    SignalSize,
		}
	case s.Speed > 0:
		processed := s.Elapsed.Seconds() * s.Speed
		return Estimate{
			Fraction:  clamp(processed/d, 0, estimatedCeiling),
			Remaining: math.Max(d-processed, 0),
			Source:    SignalSpeed,
		}
	}
	return Estimate{}
}

// TargetBitrate is the expected aggregate audio bitrate in bits per second.
// Video and container overhead are ignored, so size based fractions tend to
// run ahead on files with video.
func TargetBitrate(bitrate string, streams int) int64 {
	if streams < 1 {
		streams = 1
	}
	per := ParseBitrate(bitrate)
	if per <= 0 {
		per = defaultStreamBitrate
	}
	return per * int64(streams)
}

// FormatETA renders seconds as "MM:SS remaining". Minutes are not wrapped
// into hours.
func FormatETA(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d remaining", total/60, total%60)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// progressMeter keeps emitted fractions non-decreasing within one file.
type progressMeter struct {
	last Estimate
}

func (m *progressMeter) next(e Estimate) Estimate {
	if e.Indeterminate() {
		return m.last
	}
	if !m.last.Indeterminate() && e.Fraction < m.last.Fraction {
		e.Fraction = m.last.Fraction
	}
	m.last = e
	return e
}

// Package ffprobe wraps the ffprobe queries the conversion runner depends on.
//
// Key types:
//   - Inspector: audio streams (ranked fallback strategies), first video
//     stream, duration, and post-encode audio bitrates
//   - Result/Stream/Format: decoded ffprobe JSON
//   - AudioStream/VideoStream: the descriptors handed to the command builder
//
// Inspector methods never fail a file. On error they return a documented
// default (no streams, zero video descriptor, FallbackDuration) together
// with an error describing what went wrong, so callers can log and carry on.
package ffprobe

// Package encoding normalizes the audio of a queue of media files by driving
// one ffmpeg process per file.
//
// The pieces, leaves first:
//   - BuildArgs turns Settings plus probed stream descriptors into the ffmpeg
//     argument list. It is pure and applies the 8-bit compatibility policy.
//   - JobState and Estimator fuse the progress signals ffmpeg reports
//     (out_time, total_size, speed) with on-disk size polling into a
//     fraction and an ETA. Time is authoritative once seen; size and speed
//     estimates are capped below completion.
//   - Runner sequences the files, supervises ffmpeg, deletes partial output
//     on failure or cancellation, and reports everything as Events.
//   - Controller owns the running flag and computes overall progress.
//
// Consumers never share state with the runner. They receive Events through a
// Sink, which must tolerate concurrent Emit calls because diagnostic lines
// are forwarded from the stderr reader goroutine.
package encoding

// Command aacnorm normalizes every audio track of media files to a fixed AAC
// layout with ffmpeg while copying video, subtitles and attachments.
//
// Usage:
//
//	aacnorm convert [flags] FILE|DIR...
//	aacnorm watch DIR...
//	aacnorm probe FILE...
//	aacnorm check
//	aacnorm history [list|show|prune]
//	aacnorm config [init|validate|show]
package main

// Package history persists conversion runs and their per-file outcomes in a
// SQLite database so `aacnorm history` can report past work.
//
// Recorder adapts a Store to the encoding event stream; the convert and watch
// commands attach it to the runner sink when history is enabled.
package history

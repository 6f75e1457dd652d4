// Package services defines shared utilities consumed by the conversion runner
// and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, queue positions, and state names for
//     logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (configuration vs external tool vs validation) with errors.Is.
//
// Use these helpers when wiring new command logic so error reporting and log
// fields stay uniform across the tool.
package services

// Package services defines shared utilities consumed by the delivery workers,
// transports and operator surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, batch IDs, worker names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent job outcomes (retry vs fail immediately).
//
// Use these helpers when wiring new delivery logic so operational behaviour
// (error handling, observability, retries) stays uniform across the daemon.
package services

// Package daemon coordinates the long-running courier process.
//
// It owns the single-instance flock, starts and stops the queue service,
// and exposes the operator surface used by IPC and the HTTP API: enqueue,
// listing, retries, retention, and database diagnostics. The HTTP API also
// serves the live event stream and Prometheus metrics.
//
// Keep orchestration here; delivery and scheduling live in workflow.
package daemon

// Package api defines wire-format types and converters shared by the HTTP API,
// the IPC server, and the CLI. It translates queue and service models into
// transport-friendly DTOs so consumers never depend on internal types.
//
// # Key Types
//
// Job: one delivery record with progress, remote location, and errors.
//
// ServiceStatus: worker state and per-status counts.
//
// DaemonStatus: ServiceStatus plus process and path information.
//
// # Converters
//
// FromJob, FromAttempt, FromBatch, FromServiceStatus, FromRetryResult, and
// FromSweepResult map internal values; ToFileSpecs and ParseFilter map
// requests the other way.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses are lowercase strings. Timestamps
// use RFC3339 with milliseconds. Job metadata is passed through as
// json.RawMessage to avoid double-encoding.
package api

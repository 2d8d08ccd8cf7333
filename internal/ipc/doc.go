// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket and
// ships the matching client used by the CLI.
//
// Request and response types reuse the api DTOs so the socket protocol and
// the HTTP API stay in step.
package ipc

// Package notifications delivers upload events to observers.
//
// Workers call a single Sink synchronously for every progress, completion,
// and final failure event. Build assembles the configured sinks (ntfy, Redis
// pub/sub, and the websocket hub), fans out to all of them, and wraps the
// slow ones in an Async buffer so a stalled observer never holds up a
// delivery. Workflow code depends only on the Sink interface.
package notifications

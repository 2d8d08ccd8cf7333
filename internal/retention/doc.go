// Package retention deletes delivered source files once they age past the
// retention window and purges their rows after a second, longer window.
//
// Only completed jobs whose upload finished are eligible. Queued, uploading,
// and failed jobs keep their files so they can still be delivered or retried.
package retention

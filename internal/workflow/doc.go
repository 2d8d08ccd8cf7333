// Package workflow runs the upload queue service.
//
// The Manager accepts batches of files, persists one job per file, and feeds
// job ids into an in-memory priority scheduler. A fixed pool of workers pops
// ids, claims the job in the store, streams the file through the configured
// transport, and records the outcome. Transport failures are retried with the
// job demoted one priority step per attempt until the retry budget runs out.
//
// The store is authoritative. Scheduler entries are hints: a worker drops any
// entry whose job is no longer queued, and Start rebuilds the scheduler from
// the store after resetting jobs an unclean shutdown left mid-upload.
package workflow

// Command courier is the operator CLI for the courier upload daemon.
//
// It launches and stops the daemon, submits batches of files for delivery,
// and inspects or repairs the durable job queue. Read-only queue commands
// fall back to opening the queue database directly when the daemon is not
// running.
package main

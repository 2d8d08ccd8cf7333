// Package logs reads the daemon log for the CLI. It returns the last N lines
// of a file with bounded memory and then follows appended lines from a byte
// offset, optionally keeping only lines that match a filter.
package logs

// Package config loads, normalizes, and validates Courier configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COURIER_FTP_PASS. The Config type centralizes every knob the daemon and CLI
// need, so data directories, endpoint credentials, and retry policy are
// discovered in one pass.
package config

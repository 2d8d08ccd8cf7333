package main

import (
	"strings"

	"courier/internal/daemonrun"
)

const (
	envConfig   = "COURIER_CONFIG"
	envLogLevel = "COURIER_LOG_LEVEL"
	envSocket   = "COURIER_SOCKET"
)

// configPath returns the config file named by the environment, or "" to use
// the default search order.
func configPath(getenv func(string) string) string {
	return strings.TrimSpace(getenv(envConfig))
}

func runOptions(getenv func(string) string) daemonrun.Options {
	return daemonrun.Options{
		LogLevel:   strings.ToLower(strings.TrimSpace(getenv(envLogLevel))),
		SocketPath: strings.TrimSpace(getenv(envSocket)),
	}
}

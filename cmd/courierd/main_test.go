package main

import "testing"

func TestRunOptionsFromEnvironment(t *testing.T) {
	env := map[string]string{
		envConfig:   " /etc/courier/courier.toml ",
		envLogLevel: "DEBUG",
		envSocket:   "/run/courier.sock",
	}
	getenv := func(key string) string { return env[key] }

	if got := configPath(getenv); got != "/etc/courier/courier.toml" {
		t.Fatalf("configPath = %q", got)
	}
	opts := runOptions(getenv)
	if opts.LogLevel != "debug" || opts.SocketPath != "/run/courier.sock" {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestRunOptionsDefaults(t *testing.T) {
	getenv := func(string) string { return "" }
	if configPath(getenv) != "" {
		t.Fatal("expected empty config path")
	}
	if opts := runOptions(getenv); opts.LogLevel != "" || opts.SocketPath != "" || opts.Development {
		t.Fatalf("unexpected options %+v", opts)
	}
}

package testsupport

import (
	"path/filepath"
	"testing"

	"courier/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retry delays and pop timeouts are shortened so worker tests run quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Device.ID = "test-device"
	cfgVal.Queue.RetryDelay = 0
	cfgVal.Queue.PopTimeoutMS = 50
	cfgVal.Queue.StopTimeout = 2
	cfgVal.FTP.Host = "127.0.0.1"
	cfgVal.FTP.UseTLS = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// BaseDir returns the temp root shared by the config's directories.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.WorkerThreads = n
	}
}

// WithMaxRetries sets the retry budget.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.MaxRetries = n
	}
}

// WithPriorityCeiling caps retry demotion.
func WithPriorityCeiling(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.PriorityCeiling = n
	}
}

// WithRetention overrides the retention and purge horizons in days.
func WithRetention(retentionDays, purgeAfterDays int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retention.RetentionDays = retentionDays
		b.cfg.Retention.PurgeAfterDays = purgeAfterDays
	}
}

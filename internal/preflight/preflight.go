package preflight

import (
	"context"
	"strings"

	"courier/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the free space below which the data directory check fails.
const minFreeBytes = 256 << 20

// RunAll executes every check that applies to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Data volume", cfg.Paths.DataDir, minFreeBytes),
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Queue.Transport)) {
	case config.TransportS3:
		results = append(results, CheckS3Config(cfg.S3))
	default:
		results = append(results, CheckEndpoint(ctx, "FTP endpoint", cfg.FTPAddress(), cfg.FTP.Timeout))
	}

	if strings.TrimSpace(cfg.Notifications.RedisURL) != "" {
		results = append(results, CheckRedis(ctx, cfg.Notifications.RedisURL))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

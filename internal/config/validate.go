package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.max_retries":             c.Queue.MaxRetries,
		"queue.worker_threads":          c.Queue.WorkerThreads,
		"queue.stop_timeout":            c.Queue.StopTimeout,
		"queue.pop_timeout_ms":          c.Queue.PopTimeoutMS,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Queue.RetryDelay < 0 {
		return errors.New("queue.retry_delay must be >= 0")
	}
	if c.Queue.PriorityCeiling < 0 {
		return errors.New("queue.priority_ceiling must be >= 0")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if err := ensurePositiveMap(map[string]int{
		"retention.check_interval":       c.Retention.CheckInterval,
		"retention.purge_interval_hours": c.Retention.PurgeIntervalHours,
	}); err != nil {
		return err
	}
	if c.Retention.RetentionDays < 0 {
		return errors.New("retention.retention_days must be >= 0")
	}
	if c.Retention.PurgeAfterDays < 0 {
		return errors.New("retention.purge_after_days must be >= 0")
	}
	return nil
}

func (c *Config) validateTransport() error {
	switch c.Queue.Transport {
	case TransportFTP:
		if strings.TrimSpace(c.FTP.Host) == "" {
			return errors.New("ftp.host must be set when queue.transport is ftp")
		}
		if c.FTP.Port > 65535 {
			return fmt.Errorf("ftp.port %d out of range", c.FTP.Port)
		}
	case TransportS3:
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket must be set when queue.transport is s3")
		}
	default:
		return fmt.Errorf("queue.transport: unsupported value %q (want ftp or s3)", c.Queue.Transport)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDevice()
	c.normalizeQueue()
	c.normalizeRetention()
	c.normalizeFTP()
	c.normalizeS3()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("COURIER_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeDevice() {
	c.Device.ID = strings.TrimSpace(c.Device.ID)
	if c.Device.ID == "" {
		if value, ok := os.LookupEnv("COURIER_DEVICE_ID"); ok {
			c.Device.ID = strings.TrimSpace(value)
		}
	}
	if c.Device.ID == "" {
		if host, err := os.Hostname(); err == nil {
			c.Device.ID = host
		}
	}
}

func (c *Config) normalizeQueue() {
	c.Queue.Transport = strings.ToLower(strings.TrimSpace(c.Queue.Transport))
	if c.Queue.Transport == "" {
		c.Queue.Transport = defaultTransport
	}
	if c.Queue.StopTimeout <= 0 {
		c.Queue.StopTimeout = defaultStopTimeout
	}
	if c.Queue.PopTimeoutMS <= 0 {
		c.Queue.PopTimeoutMS = defaultPopTimeoutMS
	}
}

func (c *Config) normalizeRetention() {
	if c.Retention.PurgeIntervalHours <= 0 {
		c.Retention.PurgeIntervalHours = defaultPurgeIntervalHours
	}
}

func (c *Config) normalizeFTP() {
	if value, ok := os.LookupEnv("COURIER_FTP_HOST"); ok && strings.TrimSpace(value) != "" {
		c.FTP.Host = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("COURIER_FTP_USER"); ok && strings.TrimSpace(value) != "" {
		c.FTP.User = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("COURIER_FTP_PASS"); ok && value != "" {
		c.FTP.Pass = value
	}
	c.FTP.Host = strings.TrimSpace(c.FTP.Host)
	if c.FTP.Port <= 0 {
		c.FTP.Port = defaultFTPPort
	}
	c.FTP.RemoteDir = strings.TrimSpace(c.FTP.RemoteDir)
	if c.FTP.RemoteDir == "" {
		c.FTP.RemoteDir = defaultFTPRemoteDir
	}
	if c.FTP.Timeout <= 0 {
		c.FTP.Timeout = defaultFTPTimeout
	}
}

func (c *Config) normalizeS3() {
	c.S3.Bucket = strings.TrimSpace(c.S3.Bucket)
	c.S3.Endpoint = strings.TrimSpace(c.S3.Endpoint)
	c.S3.Prefix = strings.Trim(strings.TrimSpace(c.S3.Prefix), "/")
	c.S3.Region = strings.TrimSpace(c.S3.Region)
	if c.S3.Region == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok {
			c.S3.Region = strings.TrimSpace(value)
		}
	}
	if c.S3.Region == "" {
		c.S3.Region = defaultS3Region
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.RedisURL = strings.TrimSpace(c.Notifications.RedisURL)
	if c.Notifications.RedisURL == "" {
		if value, ok := os.LookupEnv("COURIER_REDIS_URL"); ok {
			c.Notifications.RedisURL = strings.TrimSpace(value)
		}
	}
	c.Notifications.RedisChannel = strings.TrimSpace(c.Notifications.RedisChannel)
	if c.Notifications.RedisChannel == "" {
		c.Notifications.RedisChannel = defaultRedisChannel
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultRequestTimeout
	}
	if c.Notifications.Buffer <= 0 {
		c.Notifications.Buffer = defaultNotificationBuffer
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

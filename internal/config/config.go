package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Device identifies the unit producing artifacts. The ID is stamped on every
// outbound notification.
type Device struct {
	ID string `toml:"id"`
}

// Queue contains delivery engine tuning.
type Queue struct {
	Transport       string `toml:"transport"`
	MaxRetries      int    `toml:"max_retries"`
	RetryDelay      int    `toml:"retry_delay"`
	WorkerThreads   int    `toml:"worker_threads"`
	PriorityCeiling int    `toml:"priority_ceiling"`
	StopTimeout     int    `toml:"stop_timeout"`
	PopTimeoutMS    int    `toml:"pop_timeout_ms"`
}

// Retention contains cleanup settings for delivered files and stale rows.
type Retention struct {
	CheckInterval      int `toml:"check_interval"`
	RetentionDays      int `toml:"retention_days"`
	PurgeAfterDays     int `toml:"purge_after_days"`
	PurgeIntervalHours int `toml:"purge_interval_hours"`
}

// FTP contains the file-transfer endpoint used by the ftp transport.
type FTP struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	User      string `toml:"user"`
	Pass      string `toml:"pass"`
	RemoteDir string `toml:"remote_dir"`
	UseTLS    bool   `toml:"use_tls"`
	VerifySSL bool   `toml:"verify_ssl"`
	Timeout   int    `toml:"timeout"`
}

// S3 contains object storage settings used by the s3 transport.
type S3 struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	PathStyle bool   `toml:"path_style"`
	Prefix    string `toml:"prefix"`
}

// Notifications contains configuration for outbound delivery events.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
	RedisURL        string `toml:"redis_url"`
	RedisChannel    string `toml:"redis_channel"`
	PublishProgress bool   `toml:"publish_progress"`
	Buffer          int    `toml:"buffer"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Courier.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Device: identity stamped on notifications
//   - Queue: transport selection, retry policy, and worker pool size
//   - Retention: delivered file cleanup and row purge horizons
//   - FTP / S3: delivery endpoints
//   - Notifications: ntfy, Redis pub/sub, and event buffering
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Device        Device        `toml:"device"`
	Queue         Queue         `toml:"queue"`
	Retention     Retention     `toml:"retention"`
	FTP           FTP           `toml:"ftp"`
	S3            S3            `toml:"s3"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("courier.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the job store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "courier.sock")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "courier.lock")
}

// PIDPath returns the daemon PID file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "courier.pid")
}

// LogPath returns the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "courier.log")
}

// RetryDelay is the pause between a failed attempt and its re-push.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Queue.RetryDelay) * time.Second
}

// PopTimeout bounds how long a worker blocks waiting for work.
func (c *Config) PopTimeout() time.Duration {
	return time.Duration(c.Queue.PopTimeoutMS) * time.Millisecond
}

// StopTimeout bounds how long Stop waits for workers to drain.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Queue.StopTimeout) * time.Second
}

// CheckInterval is the retention sweep period.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Retention.CheckInterval) * time.Second
}

// FTPAddress returns host:port for the ftp endpoint.
func (c *Config) FTPAddress() string {
	return fmt.Sprintf("%s:%d", c.FTP.Host, c.FTP.Port)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

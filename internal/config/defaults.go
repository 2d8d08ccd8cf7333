package config

const (
	defaultConfigPath         = "~/.config/courier/config.toml"
	defaultDataDir            = "~/.local/share/courier"
	defaultLogDir             = "~/.local/share/courier/logs"
	defaultAPIBind            = "127.0.0.1:7488"
	defaultTransport          = "ftp"
	defaultMaxRetries         = 3
	defaultRetryDelay         = 5
	defaultWorkerThreads      = 2
	defaultPriorityCeiling    = 5
	defaultStopTimeout        = 5
	defaultPopTimeoutMS       = 2000
	defaultCheckInterval      = 60
	defaultRetentionDays      = 7
	defaultPurgeAfterDays     = 30
	defaultPurgeIntervalHours = 24
	defaultFTPHost            = "localhost"
	defaultFTPPort            = 21
	defaultFTPUser            = "anonymous"
	defaultFTPPass            = "anonymous@"
	defaultFTPRemoteDir       = "/"
	defaultFTPTimeout         = 30
	defaultS3Region           = "us-east-1"
	defaultRequestTimeout     = 10
	defaultRedisChannel       = "image.uploads"
	defaultNotificationBuffer = 256
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
)

// Supported delivery transports.
const (
	TransportFTP = "ftp"
	TransportS3  = "s3"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			Transport:       defaultTransport,
			MaxRetries:      defaultMaxRetries,
			RetryDelay:      defaultRetryDelay,
			WorkerThreads:   defaultWorkerThreads,
			PriorityCeiling: defaultPriorityCeiling,
			StopTimeout:     defaultStopTimeout,
			PopTimeoutMS:    defaultPopTimeoutMS,
		},
		Retention: Retention{
			CheckInterval:      defaultCheckInterval,
			RetentionDays:      defaultRetentionDays,
			PurgeAfterDays:     defaultPurgeAfterDays,
			PurgeIntervalHours: defaultPurgeIntervalHours,
		},
		FTP: FTP{
			Host:      defaultFTPHost,
			Port:      defaultFTPPort,
			User:      defaultFTPUser,
			Pass:      defaultFTPPass,
			RemoteDir: defaultFTPRemoteDir,
			UseTLS:    true,
			VerifySSL: true,
			Timeout:   defaultFTPTimeout,
		},
		S3: S3{
			Region: defaultS3Region,
		},
		Notifications: Notifications{
			RequestTimeout: defaultRequestTimeout,
			RedisChannel:   defaultRedisChannel,
			Buffer:         defaultNotificationBuffer,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

package config

const (
	defaultDataDir               = "~/.local/share/jobsieve"
	defaultLogDir                = "~/.local/share/jobsieve/logs"
	defaultBackupDir             = "~/.local/share/jobsieve/backups"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultBusyTimeoutMillis     = 5000
	defaultCacheSizeKiB          = 16384
	defaultSynchronous           = "NORMAL"
	defaultMaxConcurrency        = 8
	defaultMaxInFlightRequests   = 16
	defaultRunTimeoutSeconds     = 900
	defaultGracePeriodSeconds    = 20
	defaultRequestTimeoutSeconds = 30
	defaultUserAgent             = "jobsieve/0.1 (+https://github.com/jobsieve/jobsieve)"
	defaultIngestSchedule        = "@every 6h"
	defaultRequestsPerMinute     = 30
	defaultBurst                 = 2
	defaultMaxRetries            = 3
	defaultBackoffBaseMillis     = 500
	defaultBackoffMaxMillis      = 30000
	defaultFailureThreshold      = 5
	defaultCooldownSeconds       = 300
	defaultCooldownMultiplier    = 2
	defaultMaxCooldownSeconds    = 3600
	defaultMaxPages              = 5
	defaultPageParam             = "page"
	defaultFreshDays             = 7
	defaultStaleDays             = 30
	defaultGhostStaleAfterDays   = 45
	defaultGhostRepostDormant    = 30
	defaultGhostStaleWeight      = 40
	defaultGhostRepostWeight     = 35
	defaultGhostAlwaysHiring     = 25
	defaultGhostThreshold        = 30
	defaultFullCheckSchedule     = "@weekly"
	defaultRecordRetention       = 200
	defaultBackupSchedule        = "@daily"
	defaultBackupRetention       = 7
	defaultRedisChannel          = "jobsieve.events"
)

var defaultAlwaysHiringPhrases = []string{
	"always hiring",
	"always accepting applications",
	"accepting applications on a rolling basis",
	"talent pool",
	"talent community",
	"future opportunities",
	"evergreen",
	"general application",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			BackupDir: defaultBackupDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Store: Store{
			BusyTimeoutMillis: defaultBusyTimeoutMillis,
			CacheSizeKiB:      defaultCacheSizeKiB,
			Synchronous:       defaultSynchronous,
		},
		Ingest: Ingest{
			MaxConcurrency:        defaultMaxConcurrency,
			MaxInFlightRequests:   defaultMaxInFlightRequests,
			RunTimeoutSeconds:     defaultRunTimeoutSeconds,
			GracePeriodSeconds:    defaultGracePeriodSeconds,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			UserAgent:             defaultUserAgent,
			Schedule:              defaultIngestSchedule,
		},
		Resilience: Resilience{
			RequestsPerMinute:  defaultRequestsPerMinute,
			Burst:              defaultBurst,
			MaxRetries:         defaultMaxRetries,
			BackoffBaseMillis:  defaultBackoffBaseMillis,
			BackoffMaxMillis:   defaultBackoffMaxMillis,
			FailureThreshold:   defaultFailureThreshold,
			CooldownSeconds:    defaultCooldownSeconds,
			CooldownMultiplier: defaultCooldownMultiplier,
			MaxCooldownSeconds: defaultMaxCooldownSeconds,
		},
		Scoring: Scoring{
			Weights: Weights{
				SkillsTitle: 40,
				Salary:      25,
				Location:    20,
				Company:     10,
				Recency:     5,
			},
			RemoteOK:  true,
			FreshDays: defaultFreshDays,
			StaleDays: defaultStaleDays,
		},
		Ghost: Ghost{
			StaleAfterDays:      defaultGhostStaleAfterDays,
			RepostDormantDays:   defaultGhostRepostDormant,
			AlwaysHiringPhrases: append([]string(nil), defaultAlwaysHiringPhrases...),
			StaleWeight:         defaultGhostStaleWeight,
			RepostWeight:        defaultGhostRepostWeight,
			AlwaysHiringWeight:  defaultGhostAlwaysHiring,
			Threshold:           defaultGhostThreshold,
		},
		Integrity: Integrity{
			FullCheckSchedule: defaultFullCheckSchedule,
			RecordRetention:   defaultRecordRetention,
		},
		Backup: Backup{
			Enabled:   true,
			Schedule:  defaultBackupSchedule,
			Retention: defaultBackupRetention,
		},
		Events: Events{
			Log:          true,
			RedisChannel: defaultRedisChannel,
		},
	}
}

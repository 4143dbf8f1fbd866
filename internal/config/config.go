package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Scheduler    SchedulerConfig
	Calendar     CalendarConfig
	Assignment   AssignmentConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	ConnectRetries int
	AppName        string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled        bool
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	DialTimeoutSec int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator token parameters.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// NotificationConfig holds notification sink settings.
type NotificationConfig struct {
	EmailFrom    string
	DashboardURL string
	TimeoutSec   int
}

// SchedulerConfig controls the background jobs.
type SchedulerConfig struct {
	Enabled bool

	SLAMonitorCron       string
	AutoCloseCron        string
	ApprovalReminderCron string
	BackupReversionCron  string

	SLABatchSize       int
	AutoCloseBatchSize int
	AutoCloseGraceDays int
	QueryTimeoutSec    int

	ReminderBatchSize    int
	ReminderBatchDelayMs int
	ReminderDevOverride  bool
}

// CalendarConfig controls working-time evaluation.
type CalendarConfig struct {
	TimeZone        string
	CacheTTLSeconds int
}

// AssignmentConfig controls automatic assignment.
type AssignmentConfig struct {
	DefaultStrategy string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-sla"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
			ConnectRetries: getEnvAsInt("POSTGRES_CONNECT_RETRIES", 5),
			AppName:        getEnv("APP_NAME", "helpdesk-sla"),
		},
		Redis: RedisConfig{
			Enabled:        getEnvAsBool("REDIS_ENABLED", true),
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			PoolSize:       getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeoutSec: getEnvAsInt("REDIS_DIAL_TIMEOUT_SECONDS", 5),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			DashboardURL: getEnv("NOTIFY_DASHBOARD_URL", "http://localhost:3000"),
			TimeoutSec:   getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 30),
		},
		Scheduler: SchedulerConfig{
			Enabled:              getEnvAsBool("SCHEDULER_ENABLED", true),
			SLAMonitorCron:       getEnv("SCHEDULER_SLA_MONITOR_CRON", "@every 5m"),
			AutoCloseCron:        getEnv("SCHEDULER_AUTO_CLOSE_CRON", "0 * * * *"),
			ApprovalReminderCron: getEnv("SCHEDULER_APPROVAL_REMINDER_CRON", "0 8 * * *"),
			BackupReversionCron:  getEnv("SCHEDULER_BACKUP_REVERSION_CRON", "*/15 * * * *"),
			SLABatchSize:         getEnvAsInt("SCHEDULER_SLA_BATCH_SIZE", 100),
			AutoCloseBatchSize:   getEnvAsInt("SCHEDULER_AUTO_CLOSE_BATCH_SIZE", 50),
			AutoCloseGraceDays:   getEnvAsInt("SCHEDULER_AUTO_CLOSE_GRACE_DAYS", 10),
			QueryTimeoutSec:      getEnvAsInt("SCHEDULER_QUERY_TIMEOUT_SECONDS", 15),
			ReminderBatchSize:    getEnvAsInt("REMINDER_BATCH_SIZE", 5),
			ReminderBatchDelayMs: getEnvAsInt("REMINDER_BATCH_DELAY_MS", 500),
			ReminderDevOverride:  getEnvAsBool("REMINDER_DEV_OVERRIDE", false),
		},
		Calendar: CalendarConfig{
			TimeZone:        getEnv("CALENDAR_TIMEZONE", "Asia/Manila"),
			CacheTTLSeconds: getEnvAsInt("CALENDAR_CACHE_TTL_SECONDS", 300),
		},
		Assignment: AssignmentConfig{
			DefaultStrategy: getEnv("ASSIGNMENT_DEFAULT_STRATEGY", "least_load"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location loads the configured zone. Hosts without tzdata fall back to a
// fixed UTC+8 offset.
func (c CalendarConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.FixedZone("PHT", 8*60*60)
	}
	return loc
}

// DialTimeout bounds connection setup to Redis.
func (r RedisConfig) DialTimeout() time.Duration {
	return seconds(r.DialTimeoutSec)
}

// CacheTTL returns how long a calendar snapshot may be reused.
func (c CalendarConfig) CacheTTL() time.Duration {
	return seconds(c.CacheTTLSeconds)
}

// QueryTimeout bounds a single data-store call made by a scheduler.
func (s SchedulerConfig) QueryTimeout() time.Duration {
	return seconds(s.QueryTimeoutSec)
}

// GracePeriod is how long a resolved ticket stays open before auto-close.
func (s SchedulerConfig) GracePeriod() time.Duration {
	return time.Duration(s.AutoCloseGraceDays) * 24 * time.Hour
}

// ReminderBatchDelay is the pause between approval reminder batches.
func (s SchedulerConfig) ReminderBatchDelay() time.Duration {
	return time.Duration(s.ReminderBatchDelayMs) * time.Millisecond
}

// Timeout bounds a single notification send.
func (n NotificationConfig) Timeout() time.Duration {
	return seconds(n.TimeoutSec)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

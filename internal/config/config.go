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
	Oracle       OracleConfig
	Knowledge    KnowledgeConfig
	Directory    DirectoryConfig
	Voice        VoiceConfig
	Workflow     WorkflowConfig
	Notification NotificationConfig
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
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// OracleConfig points at the reasoning oracle endpoint.
type OracleConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
	MaxRetries     int
	RetryBackoffMs int
}

// KnowledgeConfig points at the knowledge store endpoint.
type KnowledgeConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// DirectoryConfig points at the employee directory endpoint.
type DirectoryConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// VoiceConfig points at the voice channel endpoint.
type VoiceConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// WorkflowConfig tunes the routing engine.
type WorkflowConfig struct {
	ConfidenceThreshold float64
	MaxRedirects        int
	LockTTLSeconds      int
	LockWaitSeconds     int
	DomainKeywordsPath  string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("WORKFLOW_CONFIDENCE_THRESHOLD", "0.7"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKFLOW_CONFIDENCE_THRESHOLD: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-router"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Oracle: OracleConfig{
			BaseURL:        getEnv("ORACLE_BASE_URL", "http://127.0.0.1:4000"),
			APIKey:         os.Getenv("ORACLE_API_KEY"),
			Model:          getEnv("ORACLE_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvAsInt("ORACLE_TIMEOUT_SECONDS", 20),
			MaxRetries:     getEnvAsInt("ORACLE_MAX_RETRIES", 1),
			RetryBackoffMs: getEnvAsInt("ORACLE_RETRY_BACKOFF_MS", 500),
		},
		Knowledge: KnowledgeConfig{
			BaseURL:        getEnv("KNOWLEDGE_BASE_URL", "http://127.0.0.1:4100"),
			TimeoutSeconds: getEnvAsInt("KNOWLEDGE_TIMEOUT_SECONDS", 10),
		},
		Directory: DirectoryConfig{
			BaseURL:        getEnv("DIRECTORY_BASE_URL", "http://127.0.0.1:4200"),
			TimeoutSeconds: getEnvAsInt("DIRECTORY_TIMEOUT_SECONDS", 10),
		},
		Voice: VoiceConfig{
			BaseURL:        getEnv("VOICE_BASE_URL", "http://127.0.0.1:4300"),
			TimeoutSeconds: getEnvAsInt("VOICE_TIMEOUT_SECONDS", 10),
		},
		Workflow: WorkflowConfig{
			ConfidenceThreshold: threshold,
			MaxRedirects:        getEnvAsInt("WORKFLOW_MAX_REDIRECTS", 3),
			LockTTLSeconds:      getEnvAsInt("WORKFLOW_LOCK_TTL_SECONDS", 120),
			LockWaitSeconds:     getEnvAsInt("WORKFLOW_LOCK_WAIT_SECONDS", 10),
			DomainKeywordsPath:  os.Getenv("WORKFLOW_DOMAIN_KEYWORDS_PATH"),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
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

// Timeout returns the oracle call timeout.
func (o OracleConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// RetryBackoff returns the pause before the bounded oracle retry.
func (o OracleConfig) RetryBackoff() time.Duration {
	return time.Duration(o.RetryBackoffMs) * time.Millisecond
}

// Timeout returns the knowledge store call timeout.
func (k KnowledgeConfig) Timeout() time.Duration {
	return time.Duration(k.TimeoutSeconds) * time.Second
}

// Timeout returns the directory call timeout.
func (d DirectoryConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Timeout returns the voice channel call timeout.
func (v VoiceConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// LockTTL returns how long a per-ticket run lock may be held.
func (w WorkflowConfig) LockTTL() time.Duration {
	return time.Duration(w.LockTTLSeconds) * time.Second
}

// LockWait returns how long a caller waits on a contended lock.
func (w WorkflowConfig) LockWait() time.Duration {
	return time.Duration(w.LockWaitSeconds) * time.Second
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

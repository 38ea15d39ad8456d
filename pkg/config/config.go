package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Draft store backends.
const (
	DraftStoreMemory   = "memory"
	DraftStoreFile     = "file"
	DraftStoreRedis    = "redis"
	DraftStorePostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Backends      BackendsConfig
	Polling       PollingConfig
	Drafts        DraftsConfig
	Notifications NotificationsConfig
	Exports       ExportsConfig
	Health        HealthConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the secret used to verify session tokens issued by the
// auth service.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BackendsConfig lists the base URLs of the services the portal talks to.
type BackendsConfig struct {
	SyllabusURL     string
	WorkflowURL     string
	ReviewURL       string
	NotificationURL string
	AssistURL       string
	Timeout         time.Duration
	ActorHeader     string
	RoleHeader      string
	// ContentStringFallback retries a rejected structured content payload
	// once with the JSON-string encoding.
	ContentStringFallback bool
}

// PollingConfig bounds fixed-interval polling of jobs and health probes.
type PollingConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// DraftsConfig selects where local drafts are kept.
type DraftsConfig struct {
	Store string
	Dir   string
	TTL   time.Duration
}

// NotificationsConfig toggles the push stream consumer.
type NotificationsConfig struct {
	StreamEnabled bool
	Workers       int
}

// ExportsConfig controls where rendered comparisons are written.
type ExportsConfig struct {
	Dir string
}

// HealthConfig tunes backend health probes.
type HealthConfig struct {
	Timeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Backends = BackendsConfig{
		SyllabusURL:           strings.TrimRight(v.GetString("SYLLABUS_SERVICE_URL"), "/"),
		WorkflowURL:           strings.TrimRight(v.GetString("WORKFLOW_SERVICE_URL"), "/"),
		ReviewURL:             strings.TrimRight(v.GetString("REVIEW_SERVICE_URL"), "/"),
		NotificationURL:       strings.TrimRight(v.GetString("NOTIFICATION_SERVICE_URL"), "/"),
		AssistURL:             strings.TrimRight(v.GetString("AI_SERVICE_URL"), "/"),
		Timeout:               parseDuration(v.GetString("BACKEND_TIMEOUT"), 15*time.Second),
		ActorHeader:           v.GetString("ACTOR_HEADER"),
		RoleHeader:            v.GetString("ROLE_HEADER"),
		ContentStringFallback: v.GetBool("CONTENT_STRING_FALLBACK"),
	}
	if cfg.Backends.ReviewURL == "" {
		cfg.Backends.ReviewURL = cfg.Backends.SyllabusURL
	}

	maxAttempts := v.GetInt("POLLING_MAX_ATTEMPTS")
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	cfg.Polling = PollingConfig{
		Interval:    parseDuration(v.GetString("POLLING_INTERVAL"), time.Second),
		MaxAttempts: maxAttempts,
	}

	cfg.Drafts = DraftsConfig{
		Store: strings.ToLower(strings.TrimSpace(v.GetString("DRAFT_STORE"))),
		Dir:   v.GetString("DRAFT_DIR"),
		TTL:   parseDuration(v.GetString("DRAFT_TTL"), 7*24*time.Hour),
	}

	cfg.Notifications = NotificationsConfig{
		StreamEnabled: v.GetBool("ENABLE_NOTIFICATION_STREAM"),
		Workers:       v.GetInt("NOTIFICATION_WORKERS"),
	}

	cfg.Exports = ExportsConfig{Dir: v.GetString("EXPORT_DIR")}

	cfg.Health = HealthConfig{
		Timeout: parseDuration(v.GetString("HEALTH_CHECK_TIMEOUT"), 2*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "syllabus_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SYLLABUS_SERVICE_URL", "http://localhost:8081/api")
	v.SetDefault("WORKFLOW_SERVICE_URL", "http://localhost:8082/api")
	v.SetDefault("REVIEW_SERVICE_URL", "")
	v.SetDefault("NOTIFICATION_SERVICE_URL", "http://localhost:8083/api")
	v.SetDefault("AI_SERVICE_URL", "http://localhost:8090")
	v.SetDefault("BACKEND_TIMEOUT", "15s")
	v.SetDefault("ACTOR_HEADER", "X-User-Id")
	v.SetDefault("ROLE_HEADER", "X-User-Role")
	v.SetDefault("CONTENT_STRING_FALLBACK", true)

	v.SetDefault("POLLING_INTERVAL", "1s")
	v.SetDefault("POLLING_MAX_ATTEMPTS", 60)

	v.SetDefault("DRAFT_STORE", DraftStoreMemory)
	v.SetDefault("DRAFT_DIR", "./drafts")
	v.SetDefault("DRAFT_TTL", "168h")

	v.SetDefault("ENABLE_NOTIFICATION_STREAM", false)
	v.SetDefault("NOTIFICATION_WORKERS", 1)

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "2s")
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

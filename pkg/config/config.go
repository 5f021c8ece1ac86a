package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Mail drivers.
const (
	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

// Dedup backends.
const (
	DedupBackendPostgres = "postgres"
	DedupBackendRedis    = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Storage  StorageConfig
	Mail     MailConfig
	Workflow WorkflowConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// JWTConfig holds the shared secret used to verify tokens issued by the identity provider.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects the blob store holding working and original PDFs.
type StorageConfig struct {
	Driver           string
	Dir              string
	Bucket           string
	Region           string
	Endpoint         string
	AccessKey        string
	SecretKey        string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
}

// MailConfig configures outbound notification transport.
type MailConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// WorkflowConfig tunes the approval workflow and its background sweepers.
type WorkflowConfig struct {
	AdminEmails       []string
	OversightEmail    string
	PublicBaseURL     string
	SweepInterval     time.Duration
	ReminderWindow    time.Duration
	DefaultWindow     time.Duration
	DedupBackend      string
	GroupsFile        string
	MailWorkers       int
	MailRetries       int
	SweepersEnabled   bool
	DefaultLimitHours int
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		PoolSize: v.GetInt("REDIS_POOL_SIZE"),
		Timeout:  parseDuration(v.GetString("REDIS_TIMEOUT"), 3*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUpload := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 20 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Driver:           strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Dir:              v.GetString("STORAGE_DIR"),
		Bucket:           v.GetString("STORAGE_S3_BUCKET"),
		Region:           v.GetString("STORAGE_S3_REGION"),
		Endpoint:         v.GetString("STORAGE_S3_ENDPOINT"),
		AccessKey:        v.GetString("STORAGE_S3_ACCESS_KEY"),
		SecretKey:        v.GetString("STORAGE_S3_SECRET_KEY"),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxUpload,
	}

	cfg.Mail = MailConfig{
		Driver:   strings.ToLower(v.GetString("MAIL_DRIVER")),
		Host:     v.GetString("MAIL_HOST"),
		Port:     v.GetInt("MAIL_PORT"),
		User:     v.GetString("MAIL_USER"),
		Password: v.GetString("MAIL_PASSWORD"),
		From:     v.GetString("MAIL_FROM"),
	}

	cfg.Workflow = WorkflowConfig{
		AdminEmails:       lowerAll(splitAndTrim(v.GetString("WORKFLOW_ADMIN_EMAILS"))),
		OversightEmail:    strings.TrimSpace(v.GetString("WORKFLOW_OVERSIGHT_EMAIL")),
		PublicBaseURL:     strings.TrimRight(v.GetString("WORKFLOW_PUBLIC_BASE_URL"), "/"),
		SweepInterval:     parseDuration(v.GetString("WORKFLOW_SWEEP_INTERVAL"), time.Minute),
		ReminderWindow:    parseDuration(v.GetString("WORKFLOW_REMINDER_DEDUP_WINDOW"), time.Minute),
		DefaultWindow:     parseDuration(v.GetString("WORKFLOW_DEDUP_WINDOW"), 5*time.Minute),
		DedupBackend:      strings.ToLower(v.GetString("WORKFLOW_DEDUP_BACKEND")),
		GroupsFile:        v.GetString("WORKFLOW_GROUPS_FILE"),
		MailWorkers:       v.GetInt("WORKFLOW_MAIL_WORKERS"),
		MailRetries:       v.GetInt("WORKFLOW_MAIL_RETRIES"),
		SweepersEnabled:   v.GetBool("WORKFLOW_SWEEPERS_ENABLED"),
		DefaultLimitHours: v.GetInt("WORKFLOW_DEFAULT_LIMIT_HOURS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "approval_flow")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_TIMEOUT", "3s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_DIR", "./uploads")
	v.SetDefault("STORAGE_S3_BUCKET", "")
	v.SetDefault("STORAGE_S3_REGION", "us-east-1")
	v.SetDefault("STORAGE_S3_ENDPOINT", "")
	v.SetDefault("STORAGE_S3_ACCESS_KEY", "")
	v.SetDefault("STORAGE_S3_SECRET_KEY", "")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_download_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 20*1024*1024)

	v.SetDefault("MAIL_DRIVER", MailDriverLog)
	v.SetDefault("MAIL_HOST", "localhost")
	v.SetDefault("MAIL_PORT", 587)
	v.SetDefault("MAIL_USER", "")
	v.SetDefault("MAIL_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@localhost")

	v.SetDefault("WORKFLOW_ADMIN_EMAILS", "")
	v.SetDefault("WORKFLOW_OVERSIGHT_EMAIL", "")
	v.SetDefault("WORKFLOW_PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("WORKFLOW_SWEEP_INTERVAL", "60s")
	v.SetDefault("WORKFLOW_REMINDER_DEDUP_WINDOW", "1m")
	v.SetDefault("WORKFLOW_DEDUP_WINDOW", "5m")
	v.SetDefault("WORKFLOW_DEDUP_BACKEND", DedupBackendPostgres)
	v.SetDefault("WORKFLOW_GROUPS_FILE", "./groups.yaml")
	v.SetDefault("WORKFLOW_MAIL_WORKERS", 2)
	v.SetDefault("WORKFLOW_MAIL_RETRIES", 3)
	v.SetDefault("WORKFLOW_SWEEPERS_ENABLED", true)
	v.SetDefault("WORKFLOW_DEFAULT_LIMIT_HOURS", 0)
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

func lowerAll(values []string) []string {
	for i, value := range values {
		values[i] = strings.ToLower(value)
	}
	return values
}

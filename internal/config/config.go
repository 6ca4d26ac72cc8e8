package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime configuration resolved from flags, env and .env.
type Config struct {
	DatabaseURL string
	DBMaxConns  int

	JWTSecret string
	TokenTTL  time.Duration

	HTTPHost      string
	HTTPPort      int
	PublicBaseURL string
	FrontendURL   string
	CorsOrigins   []string

	SMTP SMTPConfig

	LogLevel         string
	LogDir           string
	LogRetentionDays int

	MaxUploadBytes int64
	MaxImagePixels int
	AMQPURL        string
	UploadQueue    string
	UploadEvents   string

	Redis RedisConfig
	MinIO MinIOConfig

	MetricsSampleSeconds int
	MetricsDiskPath      string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return c.HTTPHost + ":" + strconv.Itoa(c.HTTPPort)
}

// SetDefaults registers every key with its fallback so AutomaticEnv can see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL_HOURS", 168)
	v.SetDefault("HTTP_HOST", "127.0.0.1")
	v.SetDefault("HTTP_PORT", 5000)
	v.SetDefault("PUBLIC_BASE_URL", "")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "storage/logs")
	v.SetDefault("LOG_RETENTION_DAYS", 7)
	v.SetDefault("MAX_UPLOAD_BYTES", 32<<20)
	v.SetDefault("MAX_IMAGE_PIXELS", 40_000_000)
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("UPLOAD_QUEUE", "media.uploads")
	v.SetDefault("UPLOAD_EVENTS_EXCHANGE", "media.upload-events")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "uploads")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("METRICS_SAMPLE_SECONDS", 30)
	v.SetDefault("METRICS_DISK_PATH", "/")
}

// NewViper returns a viper instance reading the process environment.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DatabaseURL:          strings.TrimSpace(v.GetString("DATABASE_URL")),
		DBMaxConns:           v.GetInt("DB_MAX_CONNS"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		TokenTTL:             time.Duration(v.GetInt("TOKEN_TTL_HOURS")) * time.Hour,
		HTTPHost:             strings.TrimSpace(v.GetString("HTTP_HOST")),
		HTTPPort:             v.GetInt("HTTP_PORT"),
		PublicBaseURL:        strings.TrimRight(strings.TrimSpace(v.GetString("PUBLIC_BASE_URL")), "/"),
		FrontendURL:          strings.TrimRight(strings.TrimSpace(v.GetString("FRONTEND_URL")), "/"),
		CorsOrigins:          parseCSV(v.GetString("CORS_ORIGINS")),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogDir:               v.GetString("LOG_DIR"),
		LogRetentionDays:     v.GetInt("LOG_RETENTION_DAYS"),
		MaxUploadBytes:       v.GetInt64("MAX_UPLOAD_BYTES"),
		MaxImagePixels:       v.GetInt("MAX_IMAGE_PIXELS"),
		AMQPURL:              strings.TrimSpace(v.GetString("AMQP_URL")),
		UploadQueue:          v.GetString("UPLOAD_QUEUE"),
		UploadEvents:         v.GetString("UPLOAD_EVENTS_EXCHANGE"),
		MetricsSampleSeconds: v.GetInt("METRICS_SAMPLE_SECONDS"),
		MetricsDiskPath:      v.GetString("METRICS_DISK_PATH"),
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(v.GetString("SMTP_HOST")),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MinIO: MinIOConfig{
			Endpoint:  strings.TrimSpace(v.GetString("MINIO_ENDPOINT")),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("http://%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing env var: DATABASE_URL"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("missing env var: JWT_SECRET"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL_HOURS must be positive"))
	}
	if c.DBMaxConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be positive"))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.MaxImagePixels <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_PIXELS must be positive"))
	}
	if c.MetricsSampleSeconds <= 0 {
		errs = append(errs, errors.New("METRICS_SAMPLE_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}

// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mosaic_backend/internal/platform/duration"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Config holds application configuration loaded from environment variables,
// an optional .env file and an optional config.yaml.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development test production"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBConnectTimeout time.Duration `mapstructure:"DB_CONNECT_TIMEOUT" validate:"required"`
	RunMigrations    bool          `mapstructure:"RUN_MIGRATIONS"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	JWTSecret             string `mapstructure:"JWT_SECRET" validate:"required,min=16"`
	JWTRefreshSecret      string `mapstructure:"JWT_REFRESH_SECRET" validate:"required,min=16,nefield=JWTSecret"`
	AccessTokenExpiresIn  string `mapstructure:"ACCESS_TOKEN_EXPIRES_IN" validate:"required"`
	RefreshTokenExpiresIn string `mapstructure:"REFRESH_TOKEN_EXPIRES_IN" validate:"required"`
	OTPExpiresInMinutes   int    `mapstructure:"OTP_EXPIRES_IN_MINUTES" validate:"gte=1,lte=1440"`
	SuperAdminSecret      string `mapstructure:"SUPER_ADMIN_SECRET"`

	MailFrom     string `mapstructure:"MAIL_FROM" validate:"required"`
	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`

	APIURL   string `mapstructure:"API_URL" validate:"omitempty,url"`
	AdminURL string `mapstructure:"ADMIN_URL" validate:"omitempty,url"`
	SiteURL  string `mapstructure:"SITE_URL" validate:"omitempty,url"`

	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL" validate:"required"`
	OutboxMaxAttempts  int           `mapstructure:"OUTBOX_MAX_ATTEMPTS" validate:"gte=1,lte=100"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST" validate:"gte=1"`

	OTPResendCooldown time.Duration `mapstructure:"OTP_RESEND_COOLDOWN"`

	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`

	// Parsed token lifetimes.
	AccessTokenTTL  time.Duration `mapstructure:"-"`
	RefreshTokenTTL time.Duration `mapstructure:"-"`
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool { return c.AppEnv == EnvProduction }

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool { return c.AppEnv == EnvDevelopment }

// OTPTTL returns the OTP validity window.
func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPExpiresInMinutes) * time.Minute
}

// StorageEnabled reports whether S3 avatar storage is configured.
func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	keys = []string{
		"APP_ENV", "HTTP_ADDR", "SHUTDOWN_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
		"DATABASE_URL", "DB_CONNECT_TIMEOUT", "RUN_MIGRATIONS",
		"REDIS_ADDR", "REDIS_PASSWORD",
		"JWT_SECRET", "JWT_REFRESH_SECRET", "ACCESS_TOKEN_EXPIRES_IN", "REFRESH_TOKEN_EXPIRES_IN",
		"OTP_EXPIRES_IN_MINUTES", "SUPER_ADMIN_SECRET",
		"MAIL_FROM", "RESEND_API_KEY", "API_URL", "ADMIN_URL", "SITE_URL",
		"OUTBOX_POLL_INTERVAL", "OUTBOX_MAX_ATTEMPTS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "OTP_RESEND_COOLDOWN",
		"S3_ENDPOINT", "S3_REGION", "S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY",
	}
)

// Load reads .env if present, applies defaults, binds environment variables
// and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DB_CONNECT_TIMEOUT", "60s")
	v.SetDefault("RUN_MIGRATIONS", false)
	v.SetDefault("ACCESS_TOKEN_EXPIRES_IN", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRES_IN", "7d")
	v.SetDefault("OTP_EXPIRES_IN_MINUTES", 10)
	v.SetDefault("MAIL_FROM", "SyncMosaic <no-reply@syncmosaic.com>")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 5)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("OTP_RESEND_COOLDOWN", "60s")

	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	var err error
	if c.AccessTokenTTL, err = duration.Parse(c.AccessTokenExpiresIn); err != nil {
		return nil, fmt.Errorf("invalid ACCESS_TOKEN_EXPIRES_IN: %w", err)
	}
	if c.RefreshTokenTTL, err = duration.Parse(c.RefreshTokenExpiresIn); err != nil {
		return nil, fmt.Errorf("invalid REFRESH_TOKEN_EXPIRES_IN: %w", err)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Package db opens the PostgreSQL connection and applies schema migrations.
package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mosaic_backend/internal/platform/logger"
)

const retryInterval = 3 * time.Second

// Config holds discrete connection settings, used when DATABASE_URL is unset.
type Config struct {
	User         string
	Password     string
	Name         string
	Host         string
	Port         string
	SSLMode      string
	InstanceName string
}

// LoadConfigFromEnv reads DB_* variables and INSTANCE_CONNECTION_NAME.
func LoadConfigFromEnv() Config {
	return Config{
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		Host:         os.Getenv("DB_HOST"),
		Port:         os.Getenv("DB_PORT"),
		SSLMode:      os.Getenv("DB_SSLMODE"),
		InstanceName: os.Getenv("INSTANCE_CONNECTION_NAME"),
	}
}

// BuildDSN renders cfg as a postgres URL. A Cloud SQL instance name takes
// precedence over host and port and connects through the unix socket.
func BuildDSN(cfg Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Path:   "/" + cfg.Name,
	}
	q := url.Values{}

	if cfg.InstanceName != "" {
		q.Set("host", "/cloudsql/"+cfg.InstanceName)
	} else {
		host, port := cfg.Host, cfg.Port
		if host == "" {
			host = "localhost"
		}
		if port == "" {
			port = "5432"
		}
		u.Host = host + ":" + port
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		q.Set("sslmode", sslmode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ResolveDSN returns databaseURL, or a DSN built from DB_* variables when it
// is empty.
func ResolveDSN(databaseURL string) (string, error) {
	if databaseURL != "" {
		return databaseURL, nil
	}
	cfg := LoadConfigFromEnv()
	if cfg.Name == "" || (cfg.Host == "" && cfg.InstanceName == "") {
		return "", errors.New("DATABASE_URL or DB_HOST/DB_NAME must be set")
	}
	return BuildDSN(cfg), nil
}

// Opener opens a gorm connection for a DSN.
type Opener func(dsn string) (*gorm.DB, error)

// OpenPostgres opens a PostgreSQL connection through pgx with driver errors
// translated to gorm sentinels.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

// ConnectWithRetry calls opener until it succeeds or timeout elapses.
func ConnectWithRetry(dsn string, timeout time.Duration, opener Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := opener(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("db connect failed after %s: %w", timeout, err)
		}
		logger.L().Warn("db connect failed, retrying", zap.Error(err), zap.Duration("interval", retryInterval))
		time.Sleep(retryInterval)
	}
}

// Options configures Open.
type Options struct {
	DatabaseURL    string
	ConnectTimeout time.Duration
	RunMigrations  bool
	MaxOpenConns   int
	MaxIdleConns   int
}

// Open connects to PostgreSQL, tunes the pool and optionally applies the
// embedded migrations.
func Open(ctx context.Context, opts Options) (*gorm.DB, error) {
	dsn, err := ResolveDSN(opts.DatabaseURL)
	if err != nil {
		return nil, err
	}
	gdb, err := ConnectWithRetry(dsn, opts.ConnectTimeout, OpenPostgres)
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if opts.RunMigrations {
		if err := Migrate(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.L().Info("database migrations applied")
	}
	return gdb, nil
}

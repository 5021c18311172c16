// Command migrate applies or inspects the embedded database migrations.
//
//	migrate [up|down|status]
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"mosaic_backend/internal/platform/config"
	"mosaic_backend/internal/platform/db"
	"mosaic_backend/internal/platform/logger"
)

func main() {
	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	gdb, err := db.Open(ctx, db.Options{DatabaseURL: cfg.DatabaseURL, ConnectTimeout: cfg.DBConnectTimeout})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	switch cmd {
	case "up":
		err = db.Migrate(ctx, sqlDB)
	case "down":
		err = db.MigrateDown(ctx, sqlDB)
	case "status":
		err = db.MigrationStatus(ctx, sqlDB)
	default:
		fmt.Fprintf(os.Stderr, "usage: migrate [up|down|status]\n")
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("migration failed", zap.String("command", cmd), zap.Error(err))
	}
	log.Info("migration finished", zap.String("command", cmd))
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/cczslater/sellbuydeal-sub000/internal/config"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/database"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/logger"
)

const usage = "usage: migrate up|down|status|version|to <version>"

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, Service: "migrate"}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	ctx := context.Background()
	switch command {
	case "up", "down", "status", "version", "redo":
		err = database.Migrate(ctx, db.DB, command, os.Args[2:]...)
	case "to":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = database.MigrateToVersion(ctx, db.DB, os.Args[2])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Migration failed")
	}
}

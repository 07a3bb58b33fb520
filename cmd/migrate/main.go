package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/courseforge-backend/pkg/config"
	"github.com/angelmondragon/courseforge-backend/pkg/db"
	"github.com/angelmondragon/courseforge-backend/pkg/logger"
	"github.com/angelmondragon/courseforge-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate|automigrate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "courseforge-migrate"})
	ctx := context.Background()

	// create and validate only touch the filesystem.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			exit(ctx, logg, "migrate.create", fmt.Errorf("-name is required"))
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		exit(ctx, logg, "migrate.create", err)
		fmt.Println(path)
		return
	case "validate":
		exit(ctx, logg, "migrate.validate", migrate.ValidateDir(opts.dir))
		fmt.Println("migrations ok")
		return
	}

	cfg, err := config.Load()
	exit(ctx, logg, "migrate.config", err)

	logg = logger.New(logger.Options{
		ServiceName: "courseforge-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"dir":    opts.dir,
		"driver": cfg.DB.Driver,
	})

	client, err := db.New(ctx, cfg.DB, logg)
	exit(ctx, logg, "migrate.database", err)
	defer client.Close()

	if cfg.DB.Driver == config.DriverSQLite || opts.cmd == "automigrate" {
		exit(ctx, logg, "migrate.automigrate", migrate.AutoMigrateModels(client.DB()))
		logg.Info(ctx, "migrate.automigrate_completed")
		return
	}

	sqlDB, err := client.DB().DB()
	exit(ctx, logg, "migrate.database", err)

	exit(ctx, logg, "migrate."+opts.cmd, runGoose(ctx, sqlDB, opts))
	logg.Info(ctx, "migrate.completed")
}

func runGoose(ctx context.Context, sqlDB *sql.DB, opts options) error {
	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return fmt.Errorf("-version is required")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd %q", opts.cmd)
	}
}

func exit(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "step", step), "migrate.failed", err)
	os.Exit(1)
}

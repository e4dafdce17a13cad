package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"tunehall/internal/config"
	"tunehall/internal/logging"
)

const usage = "usage: migrate [-path dir] [-env-file file] up|down|version|force <version>"

func main() {
	logger := logging.New(logging.Config{Level: "info", Format: "text"})
	if err := run(os.Args[1:], logger); err != nil {
		logger.Fatal(err, "migration failed")
	}
}

func run(args []string, logger *logging.Logger) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dir := fs.String("path", "migrations", "Directory holding the migration files")
	envFile := fs.String("env-file", "config/local.env", "Optional .env file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New(usage)
	}

	// The migration always targets Postgres whatever STORE_DRIVER says.
	if os.Getenv("STORE_DRIVER") == "" {
		_ = os.Setenv("STORE_DRIVER", config.DriverPostgres)
	}
	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required (or DB_HOST, DB_USER, DB_NAME)")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	absPath, err := filepath.Abs(*dir)
	if err != nil {
		return fmt.Errorf("resolve migrations path: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(absPath), "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	switch cmd := fs.Arg(0); cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("Migrations applied successfully")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("rollback migrations: %w", err)
		}
		logger.Info("Migrations rolled back successfully")
	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("read version: %w", err)
		}
		logger.Zerolog().Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
	case "force":
		if fs.NArg() != 2 {
			return errors.New(usage)
		}
		v, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", fs.Arg(1), err)
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		logger.Zerolog().Info().Int("version", v).Msg("schema version forced")
	default:
		return fmt.Errorf("unknown command %q; %s", cmd, usage)
	}
	return nil
}

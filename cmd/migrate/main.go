package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/openmargin/margin/internal/config"
	"github.com/openmargin/margin/internal/repository/postgres"
	"github.com/openmargin/margin/internal/repository/sqlite"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	switch cfg.Database.Driver {
	case "postgres":
		fmt.Printf("Running postgres migrations against %s:%d...\n", cfg.Database.Host, cfg.Database.Port)
		err = postgres.RunMigrations(cfg.Database.DSN(), "file://migrations/postgres")
	case "sqlite":
		fmt.Printf("Running sqlite migrations against %s...\n", cfg.Database.Path)
		err = sqlite.RunMigrations(cfg.Database.Path, "file://migrations/sqlite")
	default:
		err = fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migrations applied")
}

package main

import (
	"database/sql"
	"flag"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"quizboard/internal/store"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, or status")
		dataDir = flag.String("data-dir", "", "Directory holding the sqlite files (overrides DATA_DIR)")
	)
	flag.Parse()

	// Setup logging
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	dir := *dataDir
	if dir == "" {
		dir = getEnv("DATA_DIR", "data")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("failed to create data directory")
	}

	targets := []struct {
		which string
		file  string
	}{
		{"state", getEnv("STATE_FILE", "state.db")},
		{"assets", getEnv("ASSETS_FILE", "assets.db")},
	}

	for _, target := range targets {
		path := filepath.Join(dir, target.file)

		db, err := sql.Open("sqlite", path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to open database")
		}
		db.SetMaxOpenConns(1)

		if err := store.RunMigrations(db, target.which, *command); err != nil {
			db.Close()
			log.Fatal().Err(err).Str("path", path).Str("command", *command).Msg("migration failed")
		}
		db.Close()

		log.Info().Str("path", path).Str("command", *command).Msg("migration command applied")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Command migrate brings a scheduler database up to the current schema
// without starting the bot. Opening the store applies any pending
// migrations, so this is what deploy hooks run before a rollout.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/korjavin/gamenight/pkg/logger"
	"github.com/korjavin/gamenight/pkg/storage/sqlite"
)

func main() {
	path := flag.String("db", "./data/scheduler.db", "path to the SQLite database")
	flag.Parse()

	log := logger.New("migrate")

	if err := os.MkdirAll(filepath.Dir(*path), 0o755); err != nil {
		log.Error("Failed to create data directory: %v", err)
		os.Exit(1)
	}

	store, err := sqlite.Open(*path)
	if err != nil {
		log.Error("Migration failed: %v", err)
		os.Exit(1)
	}
	if err := store.Close(); err != nil {
		log.Error("Failed to close database: %v", err)
		os.Exit(1)
	}
	log.Info("Database at %s is up to date", *path)
}

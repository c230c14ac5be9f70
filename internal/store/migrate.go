package store

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// goose configuration is package-global; serialize access so the two store
// files can migrate concurrently.
var gooseMu sync.Mutex

// RunMigrations applies a goose command ("up", "down" or "status") to one of
// the embedded migration sets, "state" or "assets". Used at store open and by
// cmd/migrator.
func RunMigrations(db *sql.DB, which, command string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	dir := "migrations/" + which
	switch command {
	case "up":
		return goose.Up(db, dir)
	case "down":
		return goose.Down(db, dir)
	case "status":
		return goose.Status(db, dir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; funnel everything through one
	// connection instead of fighting over the file lock.
	db.SetMaxOpenConns(1)
	return db, nil
}

package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/corvusHold/changenotify/internal/config"
	"github.com/corvusHold/changenotify/migrations"
)

const (
	exitOK      = 0
	exitUsage   = 2
	exitConfig  = 3
	exitMigrate = 4
)

var (
	migrateRunner = realMigrateRunner
	osExit        = os.Exit

	// migrationFS holds the embedded schema; tests may swap it.
	migrationFS fs.FS = migrations.FS
)

var migrateSubcommands = map[string]string{
	"up":      "Apply all pending migrations",
	"down":    "Roll back one migration",
	"redo":    "Roll back and re-apply the latest migration",
	"status":  "Show migration status",
	"version": "Print the current schema version",
}

func handleCLICommand(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "migrate":
		osExit(runMigrate(args[1:]))
		return true
	case "help", "-h", "--help":
		printHelp()
		osExit(exitOK)
		return true
	default:
		return false
	}
}

func runMigrate(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "missing migrate subcommand (up|down|redo|status|version)")
		return exitUsage
	}
	subcmd := args[0]
	if _, ok := migrateSubcommands[subcmd]; !ok {
		fmt.Fprintf(os.Stderr, "unknown migrate subcommand: %s\n", subcmd)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfig
	}

	if migrateRunner == nil {
		migrateRunner = realMigrateRunner
	}
	if err := migrateRunner(subcmd, cfg.DatabaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", subcmd, err)
		return exitMigrate
	}
	return exitOK
}

func realMigrateRunner(subcmd, databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	switch subcmd {
	case "up":
		return goose.Up(db, ".")
	case "down":
		return goose.Down(db, ".")
	case "redo":
		return goose.Redo(db, ".")
	case "status":
		return goose.Status(db, ".")
	case "version":
		return goose.Version(db, ".")
	default:
		return fmt.Errorf("unsupported migrate subcommand %q", subcmd)
	}
}

func printHelp() {
	fmt.Println("changenotify API server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  api                  Start API server")
	for _, sub := range []string{"up", "down", "redo", "status", "version"} {
		fmt.Printf("  api migrate %-8s %s\n", sub, migrateSubcommands[sub])
	}
	fmt.Println()
	fmt.Println("Profile change notifications use NOTIFY_CAPTURE_STRATEGY (commit|edit).")
}

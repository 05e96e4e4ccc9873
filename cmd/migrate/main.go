// Command migrate manages the bot's database schema outside the bot process.
//
// Usage:
//
//	migrate [up|down|version]
//
// up applies pending migrations (the bot also does this on start), down rolls
// back the most recent one and version prints the current schema version.
//
// Environment Variables:
//
//	DB_DSN: Database connection string (required)
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/cappuccino/db"
)

func main() {
	_ = godotenv.Load()
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [up|down|version]")
	}
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}
	if !validCommand(command) {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, os.Getenv("DB_DSN"))
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer database.Close()

	if err := run(ctx, database, command, os.Stdout); err != nil {
		slog.Error("migrate failed", slog.String("command", command), slog.Any("err", err))
		os.Exit(1)
	}
}

func validCommand(command string) bool {
	switch command {
	case "up", "down", "version":
		return true
	}
	return false
}

func run(ctx context.Context, database *sql.DB, command string, w io.Writer) error {
	switch command {
	case "up":
		if err := db.Migrate(ctx, database); err != nil {
			return err
		}
	case "down":
		if err := db.MigrateDown(database); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	version, dirty, err := db.MigrationVersion(database)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "version=%d dirty=%t\n", version, dirty)
	return err
}

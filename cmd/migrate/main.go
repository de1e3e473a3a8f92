// Command migrate manages the PostgreSQL schema with goose.
//
// The goose command (up, down, status, version, ...) is taken from the
// first argument; remaining arguments are passed through, so
// "migrate up-to 2" works as expected. DATABASE_URL selects the target.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: migrate <goose-command> [args]")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	if err := goose.RunContext(ctx, cmd, db, "migrations", args...); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"xyzcredito.org/internal/config"
	"xyzcredito.org/internal/migrate"
	"xyzcredito.org/internal/obs"
	"xyzcredito.org/migrations"
)

type command func(ctx context.Context, m *migrate.Manager) error

var commands = map[string]command{
	"up":   func(ctx context.Context, m *migrate.Manager) error { return m.Up(ctx) },
	"seed": func(ctx context.Context, m *migrate.Manager) error { return m.Seed(ctx) },
	"down": func(ctx context.Context, m *migrate.Manager) error {
		err := m.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			obs.Info("migrate_noop", map[string]any{"reason": err.Error()})
			return nil
		}
		return err
	},
	// setup brings a fresh database to a usable state.
	"setup": func(ctx context.Context, m *migrate.Manager) error {
		if err := m.Up(ctx); err != nil {
			return err
		}
		return m.Seed(ctx)
	},
	"status": func(ctx context.Context, m *migrate.Manager) error {
		history, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, item := range history {
			fmt.Println(item)
		}
		return nil
	},
}

func main() {
	log.SetFlags(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	var (
		dsn            = flag.String("dsn", cfg.PGDSN, "PostgreSQL DSN (default XYZ_PG_DSN)")
		migrationsPath = flag.String("migrations", "", "directory of SQL migrations (default: embedded schema)")
		seedsPath      = flag.String("seeds", "migrations/seeds", "directory of SQL seeds")
		timeout        = flag.Duration("timeout", 30*time.Second, "overall deadline")
	)
	flag.Parse()

	name := flag.Arg(0)
	run, ok := commands[name]
	if !ok {
		log.Fatalf("usage: migrate [%s]", strings.Join(commandNames(), "|"))
	}
	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or XYZ_PG_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var schema fs.FS = migrations.SQL()
	if *migrationsPath != "" {
		schema = os.DirFS(*migrationsPath)
	}
	mgr := migrate.NewManager(db, schema, os.DirFS(*seedsPath))

	started := time.Now()
	if err := run(ctx, mgr); err != nil {
		obs.Error("migrate_failed", err, map[string]any{"command": name})
		os.Exit(1)
	}
	obs.Info("migrate_done", map[string]any{
		"command":     name,
		"duration_ms": time.Since(started).Milliseconds(),
	})
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"error-english/manager-go/internal/config"
	"error-english/manager-go/internal/db"
	"error-english/manager-go/internal/utils"
)

func runMigrate(ctx context.Context, cfg config.Config, args []string) error {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dir := flags.String("dir", cfg.MigrationsFolder, "Directory containing *.sql migrations (built-in set when missing)")
	dryRun := flags.Bool("dry-run", false, "List pending migrations without applying")
	positional, err := parseArgs(flags, args)
	if err != nil {
		return err
	}

	action := "up"
	if len(positional) > 0 {
		action = strings.TrimSpace(positional[0])
	}
	if action == "" {
		action = "up"
	}
	if action != "up" {
		return fmt.Errorf("unsupported migrate action %q (supported: up)", action)
	}
	if !cfg.DBEnabled() {
		return errors.New("database is not configured (set DATABASE_URL or [db] in the config file)")
	}

	source, err := migrationSource(*dir)
	if err != nil {
		return err
	}
	files, err := listSQLFiles(source)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .sql files found in %s", *dir)
	}

	pool, err := pgxpool.New(ctx, cfg.DBConnString())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	pending := []string{}
	for _, name := range files {
		applied, err := isApplied(ctx, pool, name)
		if err != nil {
			return err
		}
		if !applied {
			pending = append(pending, name)
		}
	}

	if *dryRun {
		for _, name := range pending {
			fmt.Println(name)
		}
		return nil
	}

	appliedCount := 0
	for _, name := range pending {
		sqlBytes, err := fs.ReadFile(source, name)
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(sqlBytes))
		if sqlText == "" {
			continue
		}
		start := time.Now()
		utils.Info("migrate apply", "migration", name)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		_, execErr := tx.Exec(ctx, sqlText)
		if execErr == nil {
			_, execErr = tx.Exec(ctx, `INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, NOW())`, name)
		}
		if execErr != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", name, execErr)
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		appliedCount++
		utils.Info("migrate applied", "migration", name, "dur", time.Since(start).Truncate(time.Millisecond).String())
	}

	fmt.Printf("Applied %d migration(s)\n", appliedCount)
	return nil
}

// migrationSource prefers an on-disk directory and falls back to the
// migrations compiled into the binary.
func migrationSource(dir string) (fs.FS, error) {
	if utils.DirExists(dir) {
		return os.DirFS(dir), nil
	}
	utils.Logf("migrate: %q not found, using built-in migrations", dir)
	return fs.Sub(db.Migrations, "migrations")
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func isApplied(ctx context.Context, pool *pgxpool.Pool, filename string) (bool, error) {
	var out string
	err := pool.QueryRow(ctx, `SELECT filename FROM schema_migrations WHERE filename = $1`, filename).Scan(&out)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return out != "", nil
}

func listSQLFiles(source fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(path.Ext(e.Name()), ".sql") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

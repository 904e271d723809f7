// Command migrate manages the PostgreSQL schema of the settlement service
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"slices"
	"sort"
	"strconv"

	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/migration"
	"github.com/erp/settlement/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const usageHeader = `Settlement database migration tool

Usage:
  migrate [flags] <command> [arguments]

Flags:
  -path string       Migrations directory (default: schema embedded in the binary)
  -log-level string  debug, info, warn or error (default: info)

Database settings come from SETTLE_DATABASE_* variables or config.yaml.

Commands:`

// step is what a database command does once connected
type step func(*migration.Migrator) error

// command validates its arguments before any connection is opened.
// Offline commands return a nil step and do their work in prepare.
type command struct {
	args    string
	help    string
	prepare func(cli *cli, args []string) (step, error)
}

type cli struct {
	path   string
	log    *zap.Logger
	stdout io.Writer
}

var commands = map[string]command{
	"up":   {"", "Apply all pending migrations", fixed((*migration.Migrator).Up)},
	"down": {"", "Roll back all migrations", fixed((*migration.Migrator).Down)},
	"step": {"<n>", "Apply n migrations, negative rolls back", func(_ *cli, args []string) (step, error) {
		n, err := intArg(args, "step count")
		if err != nil {
			return nil, err
		}
		return func(m *migration.Migrator) error { return m.Steps(n) }, nil
	}},
	"goto": {"<version>", "Migrate to a specific version", func(_ *cli, args []string) (step, error) {
		v, err := intArg(args, "version")
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("version must not be negative, got %d", v)
		}
		return func(m *migration.Migrator) error { return m.GoTo(uint(v)) }, nil
	}},
	"force": {"<version>", "Set the version without migrating", func(_ *cli, args []string) (step, error) {
		v, err := intArg(args, "version")
		if err != nil {
			return nil, err
		}
		return func(m *migration.Migrator) error { return m.Force(v) }, nil
	}},
	"drop": {"-confirm", "Drop every database object", func(_ *cli, args []string) (step, error) {
		if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
			return nil, errors.New("drop needs -confirm")
		}
		return (*migration.Migrator).Drop, nil
	}},
	"version": {"", "Show the applied version", func(c *cli, _ []string) (step, error) {
		return func(m *migration.Migrator) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "version %d dirty=%t\n", v, dirty)
			return nil
		}, nil
	}},
	"create": {"<name> [description]", "Write the next numbered up/down pair", func(c *cli, args []string) (step, error) {
		if len(args) == 0 {
			return nil, errors.New("migration name required")
		}
		dir := c.path
		if dir == "" {
			dir = "migrations"
		}
		desc := ""
		if len(args) > 1 {
			desc = args[1]
		}
		mf, err := migration.CreateMigration(dir, args[0], desc)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(c.stdout, "%s\n%s\n", mf.UpPath, mf.DownPath)
		return nil, nil
	}},
	"list": {"", "List available migrations", func(c *cli, _ []string) (step, error) {
		names, err := migration.ListMigrations(c.source())
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			fmt.Fprintln(c.stdout, n)
		}
		return nil, nil
	}},
}

func fixed(fn func(*migration.Migrator) error) func(*cli, []string) (step, error) {
	return func(*cli, []string) (step, error) { return fn, nil }
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, usageHeader)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(w, "  %-28s %s\n", name+" "+c.args, c.help)
	}
}

func main() {
	os.Exit(run(os.Args[1:], config.Load, os.Stdout, os.Stderr))
}

func run(args []string, load func() (*config.Config, error), stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { usage(stderr) }
	path := flags.String("path", "", "Migrations directory")
	level := flags.String("log-level", "info", "Log level")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		usage(stderr)
		return 2
	}
	name, rest := flags.Arg(0), flags.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "migrate: unknown command %q\n\n", name)
		usage(stderr)
		return 2
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(stderr, "migrate: logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync(log) }()

	c := &cli{path: *path, log: log, stdout: stdout}
	s, err := cmd.prepare(c, rest)
	if err != nil {
		fmt.Fprintf(stderr, "migrate %s: %v\n", name, err)
		return 2
	}
	if s == nil {
		return 0
	}

	if err := c.online(load, s); err != nil {
		log.Error("Migration command failed", zap.String("command", name), zap.Error(err))
		return 1
	}
	return 0
}

func (c *cli) online(load func() (*config.Config, error), s step) error {
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("driver %q: migrations target postgres, sqlite is migrated on server start", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	m, err := migration.New(db, c.source(), c.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			c.log.Warn("Closing migrator", zap.Error(err))
		}
	}()
	return s(m)
}

// source is the -path directory, or the embedded schema
func (c *cli) source() iofs.FS {
	if c.path == "" {
		return migrations.FS
	}
	return os.DirFS(c.path)
}

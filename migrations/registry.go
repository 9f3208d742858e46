package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	smarthome "github.com/goliatone/go-smarthome"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultSourceLabel = "go-smarthome"

	migrationsDir = "data/sql/migrations"
)

// dialectDirs locates each dialect's migrations relative to migrationsDir.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{dialect: DialectPostgres, dir: "."},
	{dialect: DialectSQLite, dir: "sqlite"},
}

// Source is one dialect's migration tree.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel string
	Targets     []string
	Sources     []Source
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*registerOptions)

type registerOptions struct {
	label   string
	targets []string
	root    fs.FS
}

func WithSourceLabel(label string) Option {
	return func(o *registerOptions) {
		if label = strings.TrimSpace(label); label != "" {
			o.label = label
		}
	}
}

// WithValidationTargets restricts registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(o *registerOptions) {
		var next []string
		for _, target := range targets {
			target = strings.ToLower(strings.TrimSpace(target))
			if target != "" && !slices.Contains(next, target) {
				next = append(next, target)
			}
		}
		if len(next) > 0 {
			o.targets = next
		}
	}
}

// WithRoot replaces the embedded migration tree. root may hold
// data/sql/migrations or the dialect directories directly.
func WithRoot(root fs.FS) Option {
	return func(o *registerOptions) {
		if root != nil {
			o.root = root
		}
	}
}

// Sources resolves the per-dialect trees under root. Every dialect must
// carry at least one *.up.sql file.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = smarthome.GetMigrationsFS()
	}
	base, basePath := root, "."
	if sub, err := fs.Sub(root, migrationsDir); err == nil {
		if _, statErr := fs.Stat(root, migrationsDir); statErr == nil {
			base, basePath = sub, migrationsDir
		}
	}

	sources := make([]Source, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		fsys, err := fs.Sub(base, entry.dir)
		if err != nil {
			return nil, fmt.Errorf("migrations: resolve %s tree: %w", entry.dialect, err)
		}
		dir := path.Join(basePath, entry.dir)
		matches, err := fs.Glob(fsys, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", dir, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: no %s migrations under %q", entry.dialect, dir)
		}
		sources = append(sources, Source{Dialect: entry.dialect, Path: dir, FS: fsys})
	}
	return sources, nil
}

// Register hands each targeted dialect tree to registerFn. Without
// WithValidationTargets every known dialect is registered.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	options := registerOptions{label: DefaultSourceLabel}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if len(options.targets) == 0 {
		for _, entry := range dialectDirs {
			options.targets = append(options.targets, entry.dialect)
		}
	}
	reg := Registration{SourceLabel: options.label, Targets: options.targets}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	sources, err := Sources(options.root)
	if err != nil {
		return reg, err
	}
	for _, source := range sources {
		if !slices.Contains(options.targets, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.SourceLabel, source.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		reg.Sources = append(reg.Sources, source)
	}
	if len(reg.Sources) == 0 {
		return reg, fmt.Errorf("migrations: no migrations match targets %v", options.targets)
	}
	return reg, nil
}

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "postgres", "pgx", "pg":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

// Package migrate applies the ordered set of structural migrations that
// brings a partition schema to the current version. The same set runs against
// the shared partition at initial deployment and against every dedicated
// partition at provisioning time, so all partitions share one table shape.
//
// Migration SQL is written schema-relative (no schema qualification); the
// migrator pins search_path to the target partition for the duration of each
// migration transaction.
package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MigrationFunc applies one migration inside the given transaction. The
// transaction's search_path is already pinned to the target partition.
type MigrationFunc func(ctx context.Context, tx Tx) error

// Migration represents one structural migration.
type Migration struct {
	Version     int
	Description string
	Up          MigrationFunc
}

// MigrationProvider provides the ordered migration set.
type MigrationProvider interface {
	// Migrations returns all migrations sorted by version in ascending order.
	Migrations() []*Migration
}

// RegisteredMigrationProvider is a simple in-memory MigrationProvider.
type RegisteredMigrationProvider struct {
	migrations []*Migration
	sorted     bool
}

// NewRegisteredMigrationProvider creates an in-memory provider with the given
// migrations.
func NewRegisteredMigrationProvider(migrations ...*Migration) *RegisteredMigrationProvider {
	return &RegisteredMigrationProvider{migrations: migrations}
}

// Register adds a migration to the provider.
func (p *RegisteredMigrationProvider) Register(migration *Migration) {
	p.migrations = append(p.migrations, migration)
	p.sorted = false
}

// Migrations returns the migrations sorted by version in ascending order.
func (p *RegisteredMigrationProvider) Migrations() []*Migration {
	if !p.sorted {
		sortMigrations(p.migrations)
		p.sorted = true
	}
	return p.migrations
}

// CreateMigrationFromSQL creates a migration from a SQL string.
func CreateMigrationFromSQL(version int, description, upSQL string) *Migration {
	return &Migration{
		Version:     version,
		Description: description,
		Up: func(ctx context.Context, tx Tx) error {
			if _, err := tx.Exec(ctx, upSQL); err != nil {
				return fmt.Errorf("failed to execute migration SQL: %w", err)
			}
			return nil
		},
	}
}

// MigrationFile is the parsed form of a migration file name.
type MigrationFile struct {
	Version   int
	Name      string
	Direction string
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([A-Za-z0-9_-]+)\.(up|down)\.sql$`)

// ParseMigrationFileName parses names of the form NNNN_description.up.sql.
func ParseMigrationFileName(name string) (*MigrationFile, error) {
	m := migrationFilePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("not a migration file name: %q", name)
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid migration version in %q: %w", name, err)
	}
	return &MigrationFile{Version: version, Name: m[2], Direction: m[3]}, nil
}

// FSMigrationProvider loads migrations from a filesystem following the
// NNNN_description.up.sql naming convention. Down files are tolerated and
// ignored: partition provisioning only ever replays forward.
type FSMigrationProvider struct {
	fsys       fs.FS
	migrations []*Migration
}

// NewFSMigrationProvider scans the filesystem and builds the migration set.
func NewFSMigrationProvider(fsys fs.FS) (*FSMigrationProvider, error) {
	p := &FSMigrationProvider{fsys: fsys}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Migrations returns the loaded migrations sorted by version.
func (p *FSMigrationProvider) Migrations() []*Migration {
	return p.migrations
}

func (p *FSMigrationProvider) load() error {
	byVersion := make(map[int]*Migration)

	err := fs.WalkDir(p.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		file, err := ParseMigrationFileName(d.Name())
		if err != nil {
			// Skip files that don't match the migration pattern.
			return nil
		}
		if file.Direction != "up" {
			return nil
		}

		if existing, dup := byVersion[file.Version]; dup {
			return fmt.Errorf("duplicate migration version %d (%q and %q)", file.Version, existing.Description, file.Name)
		}
		byVersion[file.Version] = migrationFromFile(p.fsys, path, file)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan migrations directory: %w", err)
	}

	for _, m := range byVersion {
		p.migrations = append(p.migrations, m)
	}
	sortMigrations(p.migrations)
	return nil
}

func migrationFromFile(fsys fs.FS, path string, file *MigrationFile) *Migration {
	return &Migration{
		Version:     file.Version,
		Description: file.Name,
		Up: func(ctx context.Context, tx Tx) error {
			sql, err := fs.ReadFile(fsys, path)
			if err != nil {
				return fmt.Errorf("failed to read migration file: %w", err)
			}
			if stmt := strings.TrimSpace(string(sql)); stmt != "" {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("failed to execute migration SQL: %w", err)
				}
			}
			return nil
		},
	}
}

func sortMigrations(migrations []*Migration) {
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
}

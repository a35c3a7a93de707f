// Package bootstrap wires the tenancy components into a running application
// for the CLI commands. Every command opens the same stack: configuration,
// logger, connection pool, control schema, and the provisioning, upgrade and
// reconciliation services on top.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-extras/cobraflags"

	"github.com/stokaro/tenancy/config"
	"github.com/stokaro/tenancy/migrate"
	"github.com/stokaro/tenancy/migrations"
	"github.com/stokaro/tenancy/partition"
	"github.com/stokaro/tenancy/provision"
	"github.com/stokaro/tenancy/registry"
	"github.com/stokaro/tenancy/seedpack"
	"github.com/stokaro/tenancy/upgrade"
)

// ConfigFlag names the shared --config flag registered on every command.
const ConfigFlag = "config"

// Flags is the flag map every command registers in addition to its own.
var Flags = map[string]cobraflags.Flag{
	ConfigFlag: &cobraflags.StringFlag{
		Name:  ConfigFlag,
		Value: "",
		Usage: "Path to a YAML config file (optional, TENANCY_* environment variables always apply)",
	},
}

// App is the assembled tenancy application.
type App struct {
	Config      config.Config
	Logger      *slog.Logger
	DB          *partition.DB
	Registry    registry.Registry
	Records     registry.Records
	Migrator    *migrate.Migrator
	Mover       *partition.Mover
	Provisioner *provision.Provisioner
	Upgrader    *upgrade.Upgrader
	Reconciler  *seedpack.Reconciler
}

// Open loads the configuration, connects to Postgres, ensures the control
// schema exists and assembles the service stack.
func Open(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	db, err := partition.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pool := db.Pool()

	if err := registry.EnsureControlSchema(ctx, pool); err != nil {
		db.Close()
		return nil, err
	}

	migrator, err := migrate.NewFSMigrator(migrate.NewPoolDB(pool), migrations.FS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load migration set: %w", err)
	}

	reg := registry.NewPostgresRegistry(pool)
	records := registry.NewPostgresRecords(pool)
	mover := partition.NewMover(pool, migrations.Tables())
	ledger := seedpack.NewPostgresLedger(pool)
	reconciler := seedpack.NewReconciler(reg, records, ledger, pool, seedpack.Builtin()).
		WithWorkers(cfg.ReconcileWorkers)

	provisioner := provision.New(reg, records, db, migrator)
	if cfg.SeedOnProvision {
		provisioner = provisioner.WithSeeder(reconciler)
	}
	upgrader := upgrade.New(reg, records, provisioner, mover)

	return &App{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Registry:    reg,
		Records:     records,
		Migrator:    migrator,
		Mover:       mover,
		Provisioner: provisioner,
		Upgrader:    upgrader,
		Reconciler:  reconciler,
	}, nil
}

// Close releases the application's resources.
func (a *App) Close() {
	a.DB.Close()
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}

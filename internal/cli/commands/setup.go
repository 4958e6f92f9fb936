package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/audit"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/output"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/config"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/credentials"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/logging"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/query"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/reconcile"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/schema"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/datasync"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/gateway"
	"github.com/spf13/cobra"
)

// openKeyring is swapped in tests.
var openKeyring = credentials.OpenKeyring

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Actor    string
}

// Services are the engine components a command works with.
type Services struct {
	Gateway   *gateway.Gateway
	Runner    *query.Runner
	Schema    *schema.Introspector
	Reconcile *reconcile.Service

	// Audit is nil when the audit trail is disabled.
	Audit *audit.SQLiteStore
}

// NewCommandContext reads the config and logger the root command stored on the context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   logging.FromContext(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ParseMode(cfg.Output)),
		Actor:    currentActor(),
	}
}

// Services builds the engine components. The returned cleanup must be called.
func (c *CommandContext) Services(opts SyncOptions) (*Services, func(), error) {
	cfg := c.Cfg

	resolver := credentials.Chain{credentials.EnvResolver{}}
	if cfg.Credentials.Keyring {
		kr, err := openKeyring(cfg.Credentials.Service)
		if err != nil {
			return nil, nil, err
		}
		resolver = append(resolver, kr)
	}

	gw := gateway.New(gateway.Options{
		DefaultRows: cfg.Gateway.DefaultRows,
		MaxRows:     cfg.Gateway.MaxRows,
		Timeout:     cfg.Gateway.Timeout,
		Resolver:    resolver,
		Logger:      c.Logger,
	})

	svc := &Services{Gateway: gw}
	recorders := audit.Multi{audit.SlogRecorder{Logger: c.Logger}}
	cleanup := func() {}
	if cfg.Audit.Enabled {
		store, err := audit.Open(cfg.Audit.Path, c.Logger)
		if err != nil {
			return nil, nil, err
		}
		svc.Audit = store
		recorders = append(recorders, store)
		cleanup = func() {
			if err := store.Close(); err != nil {
				c.Logger.Warn("failed to close audit store", "error", err)
			}
		}
	}

	atomic := cfg.Sync.Atomic
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	concurrency := cfg.Sync.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	svc.Schema = schema.New(gw, c.Logger)
	svc.Runner = query.New(gw, query.Options{
		MaxPageSize: cfg.Pagination.MaxPageSize,
		Recorder:    recorders,
		Logger:      c.Logger,
	})
	executor := datasync.NewExecutor(gw, datasync.Options{
		Atomic:      atomic,
		Concurrency: concurrency,
		Actor:       c.Actor,
		Recorder:    recorders,
		Logger:      c.Logger,
	})
	svc.Reconcile = reconcile.New(gw, svc.Schema, executor, c.Logger)
	return svc, cleanup, nil
}

// SyncOptions override the configured sync policy for one command.
type SyncOptions struct {
	Atomic      *bool
	Concurrency int
}

// permission resolves the --permission flag against the config.
func (c *CommandContext) permission(name string) (access.Permission, error) {
	return c.Cfg.Permission(name)
}

func currentActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "cli"
}

// errCancelled is returned when the user declines a confirmation prompt.
var errCancelled = errors.New("cancelled")

func noConnections(cfg *config.Config) error {
	if cfg.File == "" {
		return fmt.Errorf("no connections configured\nHint: create %s with a connections section", config.ConfigFileName)
	}
	return fmt.Errorf("no connections configured in %s", cfg.File)
}

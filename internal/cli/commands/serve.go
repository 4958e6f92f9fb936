package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/config"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/server"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr       string
	Permission string
	Watch      bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API server",
		Long: `Start an HTTP server exposing query, check, compare and sync as a JSON API.

--permission names the most any request may do (default: full access). A request may
carry its own permission descriptor, which can only narrow that. With --watch, edits to the config file update the
connection list without a restart.`,
		Example: `  scurry serve
  scurry serve --addr :9000 --permission readonly --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVarP(&opts.Permission, "permission", "p", "", "Named permission capping every request (default: full access)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload connections when the config file changes")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	perm, err := cmdCtx.permission(opts.Permission)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	svc, cleanup, err := cmdCtx.Services(SyncOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	var srv *server.Server
	var background []func(ctx context.Context) error
	if opts.Watch {
		if cfg.File == "" {
			return fmt.Errorf("--watch needs a config file\nHint: create %s or pass --config", config.ConfigFileName)
		}
		background = append(background, func(ctx context.Context) error {
			return config.Watch(ctx, cfg.File, logger, func(next *config.Config) {
				srv.SetCatalog(next)
			})
		})
	}

	srv = server.New(server.Config{
		Addr:              addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		MaxConnections:    cfg.Server.MaxConnections,
		Catalog:           cfg,
		Runner:            svc.Runner,
		Reconcile:         svc.Reconcile,
		Schema:            svc.Schema,
		Audit:             svc.Audit,
		DefaultPermission: perm,
		Background:        background,
		Logger:            logger,
	})

	cmdCtx.Renderer.Printf("Starting API server on http://%s\n", addr)
	cmdCtx.Renderer.Println("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/output"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/config"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/query"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Connection  string
	Permission  string
	Input       string
	Limit       int
	Cursor      string
	Confirm     string
	Acknowledge bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL against a connection",
		Long: `Run one SQL statement against a configured connection.

The statement is checked against the access policy first. Destructive statements
need confirmation: critical ones (DROP, TRUNCATE) require the affected object name
via --confirm, warnings (DELETE or UPDATE without WHERE) require --yes. On a terminal
you are prompted instead.

SELECT results are paginated; pass the printed cursor with --cursor for the next page.

When invoked without SQL on a terminal, enters interactive REPL mode.`,
		Example: `  # Run a query
  scurry query -c prod "SELECT * FROM users"

  # Next page
  scurry query -c prod "SELECT * FROM users" --cursor eyJvZmZzZXQiOjUwfQ

  # Read-only policy from scurry.yaml
  scurry query -c prod --permission analyst "SELECT * FROM orders"

  # Output as JSON
  scurry query -c prod "SELECT 1" -o json

  # Interactive mode
  scurry query -c prod`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Connection, "connection", "c", "", "Connection name or id")
	cmd.Flags().StringVarP(&opts.Permission, "permission", "p", "", "Named permission from the config (default: full access)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 0, "Page size (default 50)")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "Cursor of the page to fetch")
	cmd.Flags().StringVar(&opts.Confirm, "confirm", "", "Object name confirming a critical statement")
	cmd.Flags().BoolVarP(&opts.Acknowledge, "yes", "y", false, "Acknowledge a warning-level statement")

	registerConnectionCompletion(cmd, "connection")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx := NewCommandContext(cmd)
	conn, err := resolveConnection(cmdCtx.Cfg, opts.Connection)
	if err != nil {
		return err
	}
	perm, err := cmdCtx.permission(opts.Permission)
	if err != nil {
		return err
	}

	var sqlText string
	switch {
	case len(args) > 0:
		sqlText = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlText = string(content)
	case !stdinIsTerminal():
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlText = string(content)
	}

	svc, cleanup, err := cmdCtx.Services(SyncOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	if sqlText == "" {
		return runQueryREPL(cmd, cmdCtx, svc, conn, perm)
	}

	req := query.Request{
		Conn:        conn,
		SQL:         sqlText,
		Permission:  perm,
		Actor:       cmdCtx.Actor,
		Cursor:      opts.Cursor,
		Limit:       opts.Limit,
		Confirm:     opts.Confirm,
		Acknowledge: opts.Acknowledge,
	}
	prompt := newPrompter(cmd)
	return executeAndRender(cmd.Context(), cmdCtx.Renderer, svc.Runner, req, prompt)
}

// executeAndRender runs one request, asking for confirmation when the statement needs it
// and a prompt is available.
func executeAndRender(ctx context.Context, r *output.Renderer, runner *query.Runner, req query.Request, prompt *prompter) error {
	resp, err := runner.Run(ctx, req)

	var cerr *query.ConfirmationError
	if errors.As(err, &cerr) {
		if prompt == nil {
			return confirmationHint(cerr)
		}
		typed, ack, perr := prompt.confirm(r, cerr.Classification)
		if perr != nil {
			return perr
		}
		req.Confirm, req.Acknowledge = typed, ack
		resp, err = runner.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	if r.Mode().Structured() {
		return r.Value(resp)
	}
	if err := output.WriteResult(r.Writer(), r.Mode(), resp.Result); err != nil {
		return err
	}
	if resp.HasMore {
		_, _ = fmt.Fprintln(r.ErrWriter(), r.Styles().Muted.Render("more rows available: --cursor "+resp.NextCursor))
	}
	return nil
}

func confirmationHint(cerr *query.ConfirmationError) error {
	c := cerr.Classification
	if c.RequiresTypedConfirmation {
		return fmt.Errorf("%s\nHint: re-run with --confirm %s", c.Message, c.ConfirmationText())
	}
	return fmt.Errorf("%s\nHint: re-run with --yes to proceed", c.Message)
}

// resolveConnection finds the connection named by ref. With no ref, a config holding exactly
// one connection selects it.
func resolveConnection(cfg *config.Config, ref string) (core.ConnectionConfig, error) {
	if len(cfg.Connections) == 0 {
		return core.ConnectionConfig{}, noConnections(cfg)
	}
	if ref == "" {
		names := cfg.ConnectionNames()
		if len(names) == 1 {
			return cfg.Connections[names[0]], nil
		}
		return core.ConnectionConfig{}, fmt.Errorf("--connection is required (available: %s)", strings.Join(names, ", "))
	}
	return cfg.Connection(ref)
}

// registerConnectionCompletion completes connection names for a flag.
func registerConnectionCompletion(cmd *cobra.Command, flag string) {
	_ = cmd.RegisterFlagCompletionFunc(flag, func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		cfg, err := config.Load(configFlag(cmd), nil)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return cfg.ConnectionNames(), cobra.ShellCompDirectiveNoFileComp
	})
}

func configFlag(cmd *cobra.Command) string {
	if f := cmd.Root().PersistentFlags().Lookup("config"); f != nil {
		return f.Value.String()
	}
	return ""
}

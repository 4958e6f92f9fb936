package commands

import (
	"fmt"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/audit"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/output"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/spf13/cobra"
)

// AuditOptions holds options for the audit command.
type AuditOptions struct {
	Connection string
	Table      string
	Action     string
	Since      time.Duration
	Limit      int
}

// NewAuditCommand creates the audit command.
func NewAuditCommand() *cobra.Command {
	opts := &AuditOptions{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail of writes",
		Long: `List recorded writes, newest first: rows applied by sync and write statements
run through query.`,
		Example: `  scurry audit
  scurry audit -c staging --table users --since 24h
  scurry audit --action insert -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			cfg := cmdCtx.Cfg
			if !cfg.Audit.Enabled {
				return fmt.Errorf("the audit trail is disabled\nHint: set audit.enabled: true in %s", configName(cfg.File))
			}

			f := audit.Filter{Table: opts.Table, Action: core.AuditAction(opts.Action), Limit: opts.Limit}
			if opts.Connection != "" {
				conn, err := cfg.Connection(opts.Connection)
				if err != nil {
					return err
				}
				f.ConnectionID = conn.ID
			}
			if opts.Since > 0 {
				f.Since = time.Now().Add(-opts.Since)
			}

			store, err := audit.Open(cfg.Audit.Path, cmdCtx.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			events, err := store.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			return writeEvents(cmdCtx.Renderer, events)
		},
	}

	cmd.Flags().StringVarP(&opts.Connection, "connection", "c", "", "Only events on this connection")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Only events on this table")
	cmd.Flags().StringVar(&opts.Action, "action", "", "Only this action: insert, update, delete or query")
	cmd.Flags().DurationVar(&opts.Since, "since", 0, "Only events newer than this (e.g. 24h)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 100, "Maximum number of events")
	_ = cmd.RegisterFlagCompletionFunc("action", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"insert", "update", "delete", "query"}, cobra.ShellCompDirectiveNoFileComp
	})
	registerConnectionCompletion(cmd, "connection")

	return cmd
}

func writeEvents(r *output.Renderer, events []core.AuditEvent) error {
	if r.Mode().Structured() {
		return r.Value(events)
	}
	t := output.Table{Header: []string{"at", "action", "actor", "connection", "table", "key", "rows"}}
	for _, e := range events {
		t.Rows = append(t.Rows, []any{
			e.At.Local().Format(time.DateTime), e.Action, e.Actor, e.Connection, e.Table, e.Key, e.RowsAffected,
		})
	}
	return output.WriteTable(r.Writer(), r.Mode(), t)
}

func configName(file string) string {
	if file == "" {
		return "scurry.yaml"
	}
	return file
}

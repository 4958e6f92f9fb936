package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/output"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/spf13/cobra"
)

// TablesOptions holds options for the tables command.
type TablesOptions struct {
	Connection string
	Permission string
	Count      bool
}

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	opts := &TablesOptions{}

	cmd := &cobra.Command{
		Use:   "tables [table]",
		Short: "List tables or describe one",
		Long: `List the tables of a connection, or show the columns of one table.

Tables outside the permission's allowlist are not shown. Hidden columns are
left out of a table description. --count adds the table's row count, which
scans the whole table.`,
		Example: `  scurry tables -c prod
  scurry tables -c prod users
  scurry tables -c prod users -o json
  scurry tables -c prod users --count`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			conn, err := resolveConnection(cmdCtx.Cfg, opts.Connection)
			if err != nil {
				return err
			}
			perm, err := cmdCtx.permission(opts.Permission)
			if err != nil {
				return err
			}
			svc, cleanup, err := cmdCtx.Services(SyncOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 1 {
				return writeSchema(cmd.Context(), cmdCtx.Renderer, svc, conn, perm, args[0], opts.Count)
			}
			return writeTables(cmd.Context(), cmdCtx.Renderer, svc, conn, perm)
		},
	}

	cmd.Flags().StringVarP(&opts.Connection, "connection", "c", "", "Connection name or id")
	cmd.Flags().StringVarP(&opts.Permission, "permission", "p", "", "Named permission from the config (default: full access)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "Count the rows of the described table")
	registerConnectionCompletion(cmd, "connection")

	return cmd
}

func writeTables(ctx context.Context, r *output.Renderer, svc *Services, conn core.ConnectionConfig, perm access.Permission) error {
	if !perm.CanView {
		return access.CheckTable(perm, "", false).Err()
	}
	tables, err := svc.Schema.ListTables(ctx, conn)
	if err != nil {
		return err
	}
	t := output.Table{Header: []string{"table"}}
	for _, name := range tables {
		if perm.AllowsTable(name) {
			t.Rows = append(t.Rows, []any{name})
		}
	}
	return output.WriteTable(r.Writer(), r.Mode(), t)
}

func writeSchema(ctx context.Context, r *output.Renderer, svc *Services, conn core.ConnectionConfig, perm access.Permission, table string, count bool) error {
	if !perm.CanView || !perm.AllowsTable(table) {
		return access.CheckTable(perm, table, false).Err()
	}
	if err := svc.Schema.RequireTable(ctx, conn, "table", table); err != nil {
		return err
	}
	meta, err := svc.Schema.DescribeTable(ctx, conn, table)
	if err != nil {
		return err
	}

	hidden := make(map[string]bool)
	for _, c := range perm.HiddenColumnsFor(table) {
		hidden[c] = true
	}
	t := output.Table{Header: []string{"column", "type", "nullable", "primary_key"}}
	for _, c := range meta.Columns {
		if hidden[strings.ToLower(c.Name)] {
			continue
		}
		t.Rows = append(t.Rows, []any{c.Name, c.Type, c.Nullable, c.PrimaryKey})
	}

	if r.Mode() == output.ModeTable {
		r.Header(1, fmt.Sprintf("Table: %s", meta.Name))
	}
	if err := output.WriteTable(r.Writer(), r.Mode(), t); err != nil {
		return err
	}
	if !count {
		return nil
	}
	n, err := svc.Schema.CountRows(ctx, conn, table)
	if err != nil {
		return err
	}
	return output.WriteTable(r.Writer(), r.Mode(), output.Table{Header: []string{"rows"}, Rows: [][]any{{n}}})
}

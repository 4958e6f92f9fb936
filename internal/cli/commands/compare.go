package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/output"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/reconcile"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/diff"
	"github.com/spf13/cobra"
)

// CompareOptions holds options shared by compare and sync.
type CompareOptions struct {
	Source     string
	Target     string
	Permission string
	PrimaryKey []string
	Columns    []string
	All        bool
}

func (o *CompareOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Source, "source", "s", "", "Source connection name or id")
	cmd.Flags().StringVarP(&o.Target, "target", "t", "", "Target connection name or id")
	cmd.Flags().StringVarP(&o.Permission, "permission", "p", "", "Named permission from the config (default: full access)")
	cmd.Flags().StringSliceVarP(&o.PrimaryKey, "key", "k", nil, "Primary key columns (default: the source table's key)")
	cmd.Flags().StringSliceVar(&o.Columns, "columns", nil, "Columns to compare (default: columns present on both sides)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")
	registerConnectionCompletion(cmd, "source")
	registerConnectionCompletion(cmd, "target")
}

// request resolves the connections and checks the permission for table.
func (o *CompareOptions) request(cmdCtx *CommandContext, table string, write bool) (reconcile.CompareRequest, error) {
	source, err := cmdCtx.Cfg.Connection(o.Source)
	if err != nil {
		return reconcile.CompareRequest{}, fmt.Errorf("source: %w", err)
	}
	target, err := cmdCtx.Cfg.Connection(o.Target)
	if err != nil {
		return reconcile.CompareRequest{}, fmt.Errorf("target: %w", err)
	}
	perm, err := cmdCtx.permission(o.Permission)
	if err != nil {
		return reconcile.CompareRequest{}, err
	}
	if d := access.CheckTable(perm, table, write); !d.Allowed {
		return reconcile.CompareRequest{}, d.Err()
	}
	return reconcile.CompareRequest{
		Source:     source,
		Target:     target,
		Table:      table,
		PrimaryKey: o.PrimaryKey,
		Columns:    o.Columns,
	}, nil
}

// NewCompareCommand creates the compare command.
func NewCompareCommand() *cobra.Command {
	opts := &CompareOptions{}

	cmd := &cobra.Command{
		Use:   "compare <table>",
		Short: "Compare a table between two connections",
		Long: `Compare the rows of a table on two connections, matched by primary key.

Each key is reported as match, different (with the changed columns),
source_only or target_only. Matching rows are hidden unless --all is set.`,
		Example: `  scurry compare -s prod -t staging users
  scurry compare -s prod -t staging users --key tenant_id,id --columns name,email
  scurry compare -s prod -t staging users -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			req, err := opts.request(cmdCtx, args[0], false)
			if err != nil {
				return err
			}
			svc, cleanup, err := cmdCtx.Services(SyncOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			cmp, err := svc.Reconcile.Compare(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeComparison(cmdCtx.Renderer, cmp, opts.All)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "Also list matching rows")
	return cmd
}

func writeComparison(r *output.Renderer, cmp *reconcile.Comparison, all bool) error {
	if r.Mode().Structured() {
		return r.Value(cmp)
	}
	styles := r.Styles()

	t := output.Table{Header: []string{"key", "status", "changes"}}
	for _, d := range cmp.Diffs {
		if d.Status == diff.StatusMatch && !all {
			continue
		}
		t.Rows = append(t.Rows, []any{d.Key, styles.Status(d.Status).Render(string(d.Status)), describeCells(d.CellDiffs)})
	}
	if len(t.Rows) > 0 || r.Mode() != output.ModeTable {
		if err := output.WriteTable(r.Writer(), r.Mode(), t); err != nil {
			return err
		}
	}

	s := cmp.Summary
	r.Println(styles.Muted.Render(fmt.Sprintf("%s: %d rows, %d match, %d different, %d source only, %d target only (%s)",
		cmp.Table, s.Total, s.Match, s.Different, s.SourceOnly, s.TargetOnly, cmp.Duration.Round(time.Millisecond))))
	for _, w := range cmp.Warnings {
		r.Warning(w)
	}
	return nil
}

func describeCells(cells []diff.CellDiff) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprintf("%s: %s → %s", c.Column, output.FormatValue(c.TargetValue), output.FormatValue(c.SourceValue))
	}
	return strings.Join(parts, "; ")
}

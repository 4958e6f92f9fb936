package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/output"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/reconcile"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/datasync"
	"github.com/spf13/cobra"
)

// SyncCommandOptions holds options for the sync command.
type SyncCommandOptions struct {
	CompareOptions
	Select      []string
	Structure   bool
	Apply       bool
	Yes         bool
	Atomic      bool
	Concurrency int
}

// NewSyncCommand creates the sync command.
func NewSyncCommand() *cobra.Command {
	opts := &SyncCommandOptions{}

	cmd := &cobra.Command{
		Use:   "sync <table>",
		Short: "Copy row differences from source to target",
		Long: `Compare a table and bring the target in line with the source.

Rows missing on the target are inserted and differing rows are updated. Rows that
only exist on the target are never deleted.

Without --apply the statements are only printed. With --apply you are asked to
confirm unless --yes is given.`,
		Example: `  # Preview
  scurry sync -s prod -t staging users

  # Apply two rows in one transaction
  scurry sync -s prod -t staging users --select '{"id":3}' --select '{"id":7}' --apply --atomic`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args[0], opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringArrayVar(&opts.Select, "select", nil, "Sync only this primary key, as a JSON object (repeatable)")
	cmd.Flags().BoolVar(&opts.Structure, "structure", false, "Request structure sync too (not supported; data is still synced)")
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "Execute the statements")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.Atomic, "atomic", false, "Apply in one transaction; the first failure rolls back everything")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Parallel statements for non-atomic runs (default from config)")

	return cmd
}

func runSync(cmd *cobra.Command, table string, opts *SyncCommandOptions) error {
	cmdCtx := NewCommandContext(cmd)
	creq, err := opts.request(cmdCtx, table, opts.Apply)
	if err != nil {
		return err
	}
	req, err := opts.syncRequest(creq)
	if err != nil {
		return err
	}

	var so SyncOptions
	if cmd.Flags().Changed("atomic") {
		so.Atomic = &opts.Atomic
		req.Atomic = &opts.Atomic
	}
	so.Concurrency = opts.Concurrency

	svc, cleanup, err := cmdCtx.Services(so)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	r := cmdCtx.Renderer

	plan, err := svc.Reconcile.Preview(ctx, req)
	if err != nil {
		return err
	}
	if !opts.Apply {
		return writePlan(r, plan)
	}
	if len(plan.Statements) == 0 {
		if r.Mode().Structured() {
			return r.Value(&datasync.Outcome{Success: true, Errors: []string{}})
		}
		r.Success("target is already in sync")
		return nil
	}

	if !opts.Yes {
		prompt := newPrompter(cmd)
		if prompt == nil {
			return fmt.Errorf("sync would run %d statements on %s\nHint: re-run with --yes to apply", len(plan.Statements), creq.Target.DisplayName())
		}
		ok, err := prompt.yesNo(fmt.Sprintf("Apply %d statements to %s?", len(plan.Statements), creq.Target.DisplayName()))
		if err != nil {
			return err
		}
		if !ok {
			return errCancelled
		}
	}

	out, err := svc.Reconcile.Apply(ctx, req)
	if err != nil {
		return err
	}
	return writeOutcome(r, out)
}

func (o *SyncCommandOptions) syncRequest(creq reconcile.CompareRequest) (reconcile.SyncRequest, error) {
	req := reconcile.SyncRequest{
		CompareRequest: creq,
		Scope:          datasync.ScopeAll,
		Content:        datasync.ContentData,
	}
	if o.Structure {
		req.Content = datasync.ContentDataAndStructure
	}
	if len(o.Select) > 0 {
		req.Scope = datasync.ScopeSelected
		for i, raw := range o.Select {
			key, err := parseKey(raw)
			if err != nil {
				return reconcile.SyncRequest{}, core.NewValidationError(fmt.Sprintf("select[%d]", i), err.Error())
			}
			req.SelectedKeys = append(req.SelectedKeys, key)
		}
	}
	return req, nil
}

// parseKey decodes a primary-key tuple given as a JSON object.
func parseKey(raw string) (core.Row, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var key core.Row
	if err := dec.Decode(&key); err != nil {
		return nil, fmt.Errorf("must be a JSON object such as {\"id\": 3}: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("must name at least one key column")
	}
	return key, nil
}

func writePlan(r *output.Renderer, plan *reconcile.Plan) error {
	if r.Mode().Structured() {
		return r.Value(plan)
	}
	if len(plan.Statements) == 0 {
		r.Success("target is already in sync")
		return nil
	}
	for _, stmt := range plan.Statements {
		r.Println(stmt.SQL)
		if len(stmt.Args) > 0 {
			args := make([]string, len(stmt.Args))
			for i, a := range stmt.Args {
				args[i] = output.FormatValue(a)
			}
			r.Println(r.Styles().Muted.Render(fmt.Sprintf("  -- args: %v", args)))
		}
	}
	var inserts, updates int
	for _, stmt := range plan.Statements {
		if stmt.Kind == datasync.KindInsert {
			inserts++
		} else {
			updates++
		}
	}
	r.Println("")
	r.Muted(fmt.Sprintf("%d inserts, %d updates; %d target-only rows are left alone",
		inserts, updates, plan.Comparison.Summary.TargetOnly))
	for _, w := range plan.Comparison.Warnings {
		r.Warning(w)
	}
	return nil
}

func writeOutcome(r *output.Renderer, out *datasync.Outcome) error {
	if r.Mode().Structured() {
		if err := r.Value(out); err != nil {
			return err
		}
	} else {
		summary := fmt.Sprintf("%d inserted, %d updated in %s", out.Inserted, out.Updated, out.Duration.Round(time.Millisecond))
		if out.Success {
			r.Success(summary)
		} else {
			r.Println(r.Styles().Critical.Render("✗ " + summary))
		}
		if out.StructureSkipped {
			r.Warning("structure sync is not supported; only data was synced")
		}
		for _, e := range out.Errors {
			r.Warning(e)
		}
	}
	if !out.Success {
		return fmt.Errorf("sync finished with %d errors", len(out.Errors))
	}
	return nil
}

package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/output"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/query"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/classify"
	"github.com/spf13/cobra"
)

// NewClassifyCommand creates the classify command.
func NewClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [SQL]",
		Short: "Rate how dangerous a statement is",
		Long: `Classify the first statement of the input as safe, warning or critical
without connecting to any database.`,
		Example: `  scurry classify "DROP TABLE users"
  echo "DELETE FROM orders" | scurry classify -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			sqlText, err := sqlArgument(cmd, args)
			if err != nil {
				return err
			}
			c := classify.Classify(sqlText)
			r := cmdCtx.Renderer
			if r.Mode().Structured() {
				return r.Value(c)
			}
			writeClassification(r, c)
			return nil
		},
	}
}

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Permission string
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check [SQL]",
		Short: "Evaluate a statement against a permission",
		Long: `Show whether a permission allows a statement, which tables and columns it
references, and how dangerous it is. Nothing is executed.

Exits with an error when the statement is denied.`,
		Example: `  scurry check --permission analyst "SELECT email FROM users"
  scurry check -p readonly "UPDATE users SET name = 'x'" -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			sqlText, err := sqlArgument(cmd, args)
			if err != nil {
				return err
			}
			perm, err := cmdCtx.permission(opts.Permission)
			if err != nil {
				return err
			}

			d, c := query.Check(sqlText, perm)
			r := cmdCtx.Renderer
			if r.Mode().Structured() {
				if err := r.Value(map[string]any{"access": d, "classification": c}); err != nil {
					return err
				}
			} else {
				writeCheck(r, d, c)
			}
			return d.Err()
		},
	}

	cmd.Flags().StringVarP(&opts.Permission, "permission", "p", "", "Named permission from the config (default: full access)")
	return cmd
}

// sqlArgument reads SQL from the arguments or piped stdin.
func sqlArgument(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if stdinIsTerminal() {
		return "", fmt.Errorf("no SQL given")
	}
	content, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return "", fmt.Errorf("no SQL given")
	}
	return string(content), nil
}

func writeClassification(r *output.Renderer, c classify.Classification) {
	styles := r.Styles()
	r.Printf("%s %s\n", styles.Muted.Render("level:"), styles.Level(c.Level).Render(string(c.Level)))
	if c.Kind != "" {
		r.Printf("%s %s\n", styles.Muted.Render("kind:"), c.Kind)
	}
	if c.AffectedObject != "" {
		r.Printf("%s %s\n", styles.Muted.Render("object:"), c.AffectedObject)
	}
	if c.Message != "" {
		r.Printf("%s %s\n", styles.Muted.Render("message:"), c.Message)
	}
	switch {
	case c.RequiresTypedConfirmation:
		r.Printf("%s type %q\n", styles.Muted.Render("confirm:"), c.ConfirmationText())
	case c.RequiresAcknowledgement:
		r.Printf("%s acknowledgement\n", styles.Muted.Render("confirm:"))
	}
	if c.ContainsMultipleStatements {
		r.Muted("only the first of several statements was classified")
	}
}

func writeCheck(r *output.Renderer, d access.Decision, c classify.Classification) {
	styles := r.Styles()
	if d.Allowed {
		r.Success("allowed")
	} else {
		r.Println(styles.Critical.Render("✗ denied: " + d.Reason))
	}
	if len(d.Tables) > 0 {
		r.Printf("%s %s\n", styles.Muted.Render("tables:"), strings.Join(d.Tables, ", "))
	}
	if len(d.Columns) > 0 {
		cols := make([]string, len(d.Columns))
		for i, col := range d.Columns {
			cols[i] = col.String()
		}
		r.Printf("%s %s\n", styles.Muted.Render("columns:"), strings.Join(cols, ", "))
	}
	writeClassification(r, c)
}

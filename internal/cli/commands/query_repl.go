package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/query"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/spf13/cobra"
)

// repl is one interactive session against a connection.
type repl struct {
	cmd  *cobra.Command
	cctx *CommandContext
	svc  *Services
	conn core.ConnectionConfig
	perm access.Permission
}

func runQueryREPL(cmd *cobra.Command, cctx *CommandContext, svc *Services, conn core.ConnectionConfig, perm access.Permission) error {
	ctx := cmd.Context()
	s := &repl{cmd: cmd, cctx: cctx, svc: svc, conn: conn, perm: perm}
	basePrompt := fmt.Sprintf("scurry(%s)> ", conn.DisplayName())

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          basePrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    s.completer(ctx),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	prompt := &prompter{
		out: cmd.ErrOrStderr(),
		ask: func(p string) (string, error) {
			rl.SetPrompt(p)
			defer rl.SetPrompt(basePrompt)
			return rl.Readline()
		},
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Scurry REPL (connection: %s, %s)\n", conn.DisplayName(), conn.Kind)
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(basePrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := s.dotCommand(ctx, line); quit {
				break
			}
			continue
		}

		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString("\n")
			rl.SetPrompt("    ...> ")
			continue
		}
		rl.SetPrompt(basePrompt)

		sqlText := buf.String()
		buf.Reset()

		req := query.Request{Conn: conn, SQL: sqlText, Permission: perm, Actor: cctx.Actor}
		if err := executeAndRender(ctx, cctx.Renderer, svc.Runner, req, prompt); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

// historyFile keeps REPL history next to the user's scurry state.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".scurry")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "query_history")
}

// dotCommand handles a REPL meta command and reports whether the session should end.
func (s *repl) dotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	errOut := s.cmd.ErrOrStderr()
	r := s.cctx.Renderer

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.cmd.OutOrStdout())

	case ".tables":
		if err := writeTables(ctx, r, s.svc, s.conn, s.perm); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .schema <table>")
			return false
		}
		if err := writeSchema(ctx, r, s.svc, s.conn, s.perm, parts[1]); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".check":
		sqlText := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
		if sqlText == "" {
			_, _ = fmt.Fprintln(errOut, "Usage: .check <sql>")
			return false
		}
		d, c := query.Check(sqlText, s.perm)
		writeCheck(r, d, c)

	case ".clear":
		_, _ = fmt.Fprint(s.cmd.OutOrStdout(), "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tables         List tables visible to your permission
  .schema <name>  Show columns of a table
  .check <sql>    Show the access decision and danger level without running
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// completer offers table names and dot commands.
func (s *repl) completer(ctx context.Context) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	// Completion is best effort; an unreachable database just offers none.
	if tables, err := s.svc.Schema.ListTables(ctx, s.conn); err == nil {
		for _, t := range tables {
			if s.perm.AllowsTable(t) {
				items = append(items, readline.PcItem(t))
			}
		}
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema"),
		readline.PcItem(".check"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}

// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/output"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/config"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/logging"
	itestutil "github.com/mfirdausazizi/scurrydb-sub002/internal/testutil"
	"github.com/spf13/cobra"

	// sqlite driver for fixture databases.
	_ "modernc.org/sqlite"
)

// SeedSQLite creates a sqlite database at path and runs stmts against it.
func SeedSQLite(t *testing.T, path string, stmts ...string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer func() { _ = db.Close() }()

	for _, stmt := range stmts {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("failed to run %q: %v", stmt, err)
		}
	}
}

// SetupTestProject writes scurry.yaml into a temp dir with two sqlite connections,
// "source" and "target", each holding a users table, and loads it.
// The audit trail is stored in the same dir.
func SetupTestProject(t *testing.T, extra string) (*config.Config, string) {
	t.Helper()

	dir := t.TempDir()
	source := filepath.Join(dir, "source.db")
	target := filepath.Join(dir, "target.db")
	SeedSQLite(t, source,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT)`,
		`INSERT INTO users VALUES (1, 'Ann', 'ann@x.io'), (2, 'Bob', 'bob@x.io'), (3, 'Cat', 'cat@x.io')`,
	)
	SeedSQLite(t, target,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT)`,
		`INSERT INTO users VALUES (1, 'Ann', 'ann@x.io'), (2, 'Robert', 'bob@x.io'), (4, 'Dan', 'dan@x.io')`,
	)

	yaml := `connections:
  source:
    kind: sqlite
    path: ` + source + `
  target:
    kind: sqlite
    path: ` + target + `
permissions:
  readonly:
    can_view: true
  analyst:
    can_view: true
    hidden_columns:
      users: [email]
audit:
  path: ` + filepath.Join(dir, "audit.db") + `
` + extra

	path := filepath.Join(dir, config.ConfigFileName)
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.Load(path, nil)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg, dir
}

// Result is the captured output of a command run.
type Result struct {
	Out    string
	ErrOut string
	Err    error
}

// Run executes cmd with args, the given config and a test logger on the context.
func Run(t *testing.T, cmd *cobra.Command, cfg *config.Config, stdin string, args ...string) Result {
	t.Helper()

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	ctx := config.NewContext(context.Background(), cfg)
	ctx = logging.NewContext(ctx, itestutil.NewTestLogger(t))
	err := cmd.ExecuteContext(ctx)
	return Result{Out: out.String(), ErrOut: errOut.String(), Err: err}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode.
func NewTestRenderer(mode output.Mode) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(out, errOut, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

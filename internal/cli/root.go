// Package cli provides the command-line interface for scurry.
package cli

import (
	"fmt"
	"os"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/commands"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/output"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/config"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/logging"
	"github.com/spf13/cobra"

	// Engine adapters register themselves with the adapter registry.
	_ "github.com/mfirdausazizi/scurrydb-sub002/pkg/adapters/duckdb"
	_ "github.com/mfirdausazizi/scurrydb-sub002/pkg/adapters/mysql"
	_ "github.com/mfirdausazizi/scurrydb-sub002/pkg/adapters/postgres"
	_ "github.com/mfirdausazizi/scurrydb-sub002/pkg/adapters/sqlite"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// skipConfig lists commands that run without loading the config.
var skipConfig = map[string]bool{
	"help":                          true,
	"completion":                    true,
	"version":                       true,
	cobra.ShellCompRequestCmd:       true,
	cobra.ShellCompNoDescRequestCmd: true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scurry",
		Short: "scurry - multi-database admin toolkit",
		Long: `scurry runs SQL against PostgreSQL, MySQL, MariaDB, SQLite and DuckDB connections
behind an access policy, confirms destructive statements before they run, and
compares and syncs tables between connections.

Connections, permissions and defaults are read from scurry.yaml, SCURRY_
environment variables and flags, in increasing precedence.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfig[cmd.Name()] {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := config.NewContext(cmd.Context(), cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			if cfg.Verbose && cfg.File != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", cfg.File)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./scurry.yaml)")
	flags.StringP("output", "o", "", "Output format (table|json|csv|md|yaml)")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-format", "", "Log format (text|json)")
	flags.String("audit-db", "", "Path to the audit database")
	flags.Int("max-rows", 0, "Hard cap on rows returned by a statement")
	flags.Duration("timeout", 0, "Timeout for one statement, connect included")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	}))
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewTablesCommand())
	rootCmd.AddCommand(commands.NewClassifyCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewCompareCommand())
	rootCmd.AddCommand(commands.NewSyncCommand())
	rootCmd.AddCommand(commands.NewAuditCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewCredentialsCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for scurry.

To load completions:

Bash:
  $ source <(scurry completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ scurry completion bash > /etc/bash_completion.d/scurry
  # macOS:
  $ scurry completion bash > $(brew --prefix)/etc/bash_completion.d/scurry

Zsh:
  $ scurry completion zsh > "${fpath[1]}/_scurry"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ scurry completion fish | source

  # To load completions for each session, execute once:
  $ scurry completion fish > ~/.config/fish/completions/scurry.fish

PowerShell:
  PS> scurry completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}

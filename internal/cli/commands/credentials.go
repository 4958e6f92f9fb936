package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewCredentialsCommand creates the credentials command group.
func NewCredentialsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage connection passwords in the OS keyring",
		Long: `Store or remove connection passwords in the OS keyring.

Stored passwords are used for connections that have no password in the config
when credentials.keyring is enabled.`,
	}
	cmd.AddCommand(newCredentialsSetCommand())
	cmd.AddCommand(newCredentialsDeleteCommand())
	return cmd
}

func newCredentialsSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <connection>",
		Short: "Store the password of a connection",
		Example: `  scurry credentials set prod
  echo "$PROD_PASSWORD" | scurry credentials set prod`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			conn, err := cmdCtx.Cfg.Connection(args[0])
			if err != nil {
				return err
			}
			if conn.Kind.IsFileBased() {
				return fmt.Errorf("%s is a %s connection and has no password", conn.DisplayName(), conn.Kind)
			}
			ring, err := openKeyring(cmdCtx.Cfg.Credentials.Service)
			if err != nil {
				return err
			}

			password, err := readPassword(cmd, fmt.Sprintf("Password for %s: ", conn.DisplayName()))
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}
			if err := ring.Store(conn, password); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("stored password for %s", conn.DisplayName()))
			return nil
		},
	}
}

func newCredentialsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <connection>",
		Aliases: []string{"rm"},
		Short:   "Remove the stored password of a connection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			conn, err := cmdCtx.Cfg.Connection(args[0])
			if err != nil {
				return err
			}
			ring, err := openKeyring(cmdCtx.Cfg.Credentials.Service)
			if err != nil {
				return err
			}
			if err := ring.Remove(conn); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("removed password for %s", conn.DisplayName()))
			return nil
		},
	}
}

// readPassword reads without echo on a terminal and reads one line otherwise.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if stdinIsTerminal() {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), prompt)
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(data), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli/output"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/classify"
	"github.com/spf13/cobra"
)

// stdinIsTerminal is swapped in tests.
var stdinIsTerminal = func() bool { return output.IsTerminal(os.Stdin) }

// prompter asks the user to confirm dangerous operations.
type prompter struct {
	out io.Writer
	// ask shows a prompt and returns the answer line.
	ask func(prompt string) (string, error)
}

// newPrompter returns nil when stdin is not interactive.
func newPrompter(cmd *cobra.Command) *prompter {
	if !stdinIsTerminal() {
		return nil
	}
	return newReaderPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
}

func newReaderPrompter(in io.Reader, out io.Writer) *prompter {
	br := bufio.NewReader(in)
	return &prompter{
		out: out,
		ask: func(prompt string) (string, error) {
			_, _ = fmt.Fprint(out, prompt)
			line, err := br.ReadString('\n')
			if err != nil && (err != io.EOF || line == "") {
				return "", fmt.Errorf("failed to read answer: %w", err)
			}
			return line, nil
		},
	}
}

// confirm shows the classification and reads the user's answer.
func (p *prompter) confirm(r *output.Renderer, c classify.Classification) (string, bool, error) {
	style := r.Styles().Level(c.Level)
	_, _ = fmt.Fprintln(p.out, style.Render(strings.ToUpper(string(c.Level))+": "+c.Message))

	if c.RequiresTypedConfirmation {
		line, err := p.ask(fmt.Sprintf("Type %q to confirm: ", c.ConfirmationText()))
		if err != nil {
			return "", false, err
		}
		line = strings.TrimSpace(line)
		if line != c.ConfirmationText() {
			return "", false, errCancelled
		}
		return line, false, nil
	}

	ok, err := p.yesNo("Proceed?")
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, errCancelled
	}
	return "", true, nil
}

// yesNo asks a plain yes/no question. Anything but y or yes is no.
func (p *prompter) yesNo(question string) (bool, error) {
	line, err := p.ask(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

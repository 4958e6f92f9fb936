// Package output renders command results for terminals and scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Mode is an output format.
type Mode string

// Output modes.
const (
	ModeTable    Mode = "table"
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
	ModeMarkdown Mode = "md"
	ModeYAML     Mode = "yaml"
)

// Modes lists every output mode, for flag completion.
func Modes() []string {
	return []string{string(ModeTable), string(ModeJSON), string(ModeCSV), string(ModeMarkdown), string(ModeYAML)}
}

// ParseMode normalizes a format name. Unknown or empty names fall back to table.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return ModeJSON
	case "csv":
		return ModeCSV
	case "md", "markdown":
		return ModeMarkdown
	case "yaml", "yml":
		return ModeYAML
	default:
		return ModeTable
	}
}

// Structured reports whether the mode is meant for machines.
func (m Mode) Structured() bool {
	return m == ModeJSON || m == ModeYAML
}

// Renderer writes styled messages and results.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	styles *Styles
}

// NewRenderer creates a renderer. Colors are used only when out is a terminal
// and NO_COLOR is unset.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	re := lipgloss.NewRenderer(out)
	if termenv.EnvNoColor() {
		re.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		styles: NewStyles(re),
	}
}

// Mode returns the output mode.
func (r *Renderer) Mode() Mode {
	return r.mode
}

// Writer returns the primary output.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the diagnostic output.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errOut
}

// Styles returns the renderer styles.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Println writes a line to the primary output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the primary output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a heading.
func (r *Renderer) Header(level int, text string) {
	if r.mode == ModeMarkdown {
		r.Println(strings.Repeat("#", max(level, 1)) + " " + text)
		return
	}
	r.Println(r.styles.Header.Render(text))
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Warning writes a warning to the diagnostic output.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+msg))
}

// Muted writes de-emphasized text.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// Value writes v as JSON or YAML. Table-like modes fall back to indented JSON.
func (r *Renderer) Value(v any) error {
	return WriteValue(r.out, r.mode, v)
}

// WriteValue encodes v for a structured mode.
func WriteValue(w io.Writer, mode Mode, v any) error {
	if mode == ModeYAML {
		// Round-trip through JSON so field names follow the json tags.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

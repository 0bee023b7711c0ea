package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const defaultWidth = 80

// terminal reports whether w is an interactive terminal and its width.
// Tests replace it.
var terminal = func(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok {
		return false, defaultWidth
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return false, defaultWidth
	}
	if width, _, err := term.GetSize(fd); err == nil && width > 0 {
		return true, width
	}
	return true, defaultWidth
}

// inputIsTerminal reports whether r is an interactive terminal.
var inputIsTerminal = func(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderAnswer prints answer to w, as rendered markdown when w is a
// terminal and plain is not set. Rendering failures fall back to the raw
// text.
func renderAnswer(w io.Writer, answer string, plain bool) error {
	tty, width := terminal(w)
	if plain || !tty {
		_, err := fmt.Fprintln(w, answer)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		_, err = fmt.Fprintln(w, answer)
		return err
	}
	out, err := renderer.Render(answer)
	if err != nil {
		_, err = fmt.Fprintln(w, answer)
		return err
	}
	_, err = fmt.Fprint(w, strings.TrimLeft(out, "\n"))
	return err
}

package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/aretw0/n8nbridge/pkg/domain"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// WriteJSON prints the result as a single JSON line (scripts, pipes).
func WriteJSON(w io.Writer, res domain.Result) error {
	return json.NewEncoder(w).Encode(res)
}

// WriteResult prints a colored status line followed by the response rendered as markdown.
func WriteResult(w io.Writer, req domain.ActionRequest, res domain.Result) error {
	p := termenv.ColorProfile()

	var status termenv.Style
	switch v := res.(type) {
	case domain.Success:
		status = termenv.String(fmt.Sprintf("✔ %s delivered (HTTP %d)", req.Action, v.StatusCode)).
			Foreground(p.Color("#34d399")).Bold()
	case domain.Failure:
		status = termenv.String(fmt.Sprintf("✘ %s failed (%s)", req.Action, v.Kind)).
			Foreground(p.Color("#f87171")).Bold()
	}
	if _, err := fmt.Fprintln(w, status); err != nil {
		return err
	}

	out, err := NewRenderer()(Markdown(req, res))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

// Markdown describes a relayed action and its outcome.
func Markdown(req domain.ActionRequest, res domain.Result) string {
	var b strings.Builder
	b.WriteString("| campo | valor |\n|---|---|\n")
	fmt.Fprintf(&b, "| accion | `%s` |\n", req.Action)
	fmt.Fprintf(&b, "| objetivo | `%s` |\n", req.Target)
	fmt.Fprintf(&b, "| valor | `%s` |\n\n", req.Value)

	switch v := res.(type) {
	case domain.Success:
		body := v.String()
		if pretty, err := json.MarshalIndent(v.Body, "", "  "); err == nil && !isString(v.Body) {
			body = string(pretty)
			b.WriteString("```json\n" + body + "\n```\n")
		} else {
			b.WriteString("> " + body + "\n")
		}
	case domain.Failure:
		b.WriteString("**Error:** " + v.Message + "\n")
	}
	return b.String()
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

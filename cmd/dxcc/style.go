package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD166"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))
)

// styles carries the rendered labels and the diagnostic painter. Colors
// are only used when stderr is a terminal.
type styles struct {
	color    bool
	errLabel string
	okLabel  string
}

func sty() styles {
	s := styles{color: term.IsTerminal(int(os.Stderr.Fd()))}
	if s.color {
		s.errLabel = errorStyle.Render("error:")
		s.okLabel = okStyle.Render("wrote")
	} else {
		s.errLabel = "error:"
		s.okLabel = "wrote"
	}
	return s
}

// paintDiagnostics colors DXC diagnostic lines by severity. The text
// arrives as clang-style "<file>:<line>:<col>: <severity>: <msg>" lines.
func (s styles) paintDiagnostics(text string) string {
	if text == "" {
		return ""
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if !s.color {
		return text
	}

	var b strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		switch {
		case strings.Contains(line, ": error:") || strings.Contains(line, ": fatal error:"):
			b.WriteString(errorStyle.Render(strings.TrimSuffix(line, "\n")))
			b.WriteByte('\n')
		case strings.Contains(line, ": warning:"):
			b.WriteString(warnStyle.Render(strings.TrimSuffix(line, "\n")))
			b.WriteByte('\n')
		default:
			b.WriteString(line)
		}
	}
	return b.String()
}

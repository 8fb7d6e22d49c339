package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	colorReset    = "\033[0m"
	colorBold     = "\033[1m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
	colorGreen    = "\033[92m"
)

// ------------------------------------------------------------
// Utility
// ------------------------------------------------------------

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ------------------------------------------------------------
// Banner
// ------------------------------------------------------------

func PrintBanner(w io.Writer) {
	banner := `
  ____   ___  ____   ___  ____  ____  _____     _______ ____
 |  _ \ / _ \| __ ) / _ \|  _ \|  _ \|_ _\ \   / / ____|  _ \
 | |_) | | | |  _ \| | | | | | | |_) || | \ \ / /|  _| | |_) |
 |  _ <| |_| | |_) | |_| | |_| |  _ < | |  \ V / | |___|  _ <
 |_| \_\\___/|____/ \___/|____/|_| \_\___|  \_/  |_____|_| \_\

            >> GOAL-DRIVEN BROWSER AUTOMATION <<
`
	width := termWidth()
	color, reset := colorNeonCyan, colorReset
	if !isTerminal(w) {
		color, reset = "", ""
	}
	for _, l := range strings.Split(banner, "\n") {
		padding := clamp((width-len(l))/2, 0, width)
		fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat(" ", padding), color, l, reset)
	}
}

// ------------------------------------------------------------
// Result box
// ------------------------------------------------------------

// Box describes a framed block of text, such as a run result.
type Box struct {
	Title string
	OK    bool
	Lines []string
}

// RenderBox draws b, wrapping long lines to the terminal width.
func RenderBox(w io.Writer, b Box) {
	inner := clamp(termWidth()-4, 20, 100)
	color, reset := colorNeonMag, colorReset
	if b.OK {
		color = colorGreen
	}
	if !isTerminal(w) {
		color, reset = "", ""
	}

	rule := strings.Repeat("=", inner+4)
	fmt.Fprintf(w, "%s%s\n", color, rule)
	fmt.Fprintf(w, "  %s%s%s\n", colorBoldIf(color != ""), b.Title, reset+color)
	fmt.Fprintln(w, rule)
	for _, line := range b.Lines {
		for _, part := range wrap(line, inner) {
			fmt.Fprintf(w, "  %s\n", part)
		}
	}
	fmt.Fprintf(w, "%s%s\n", rule, reset)
}

func colorBoldIf(on bool) string {
	if on {
		return colorBold
	}
	return ""
}

func wrap(s string, width int) []string {
	if utf8.RuneCountInString(s) <= width {
		return []string{s}
	}
	var out []string
	line := ""
	for _, word := range strings.Fields(s) {
		switch {
		case line == "":
			line = word
		case utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) > width:
			out = append(out, line)
			line = "    " + word
		default:
			line += " " + word
		}
	}
	if line != "" {
		out = append(out, line)
	}
	return out
}

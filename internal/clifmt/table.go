package clifmt

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	defaultTableWidth   = 120
	defaultMinWrapWidth = 24
)

// Column describes one table column. Style, when set, decorates a cell after
// padding so escape codes never disturb alignment.
type Column struct {
	Header string
	Style  func(string) string
}

type TableOptions struct {
	Title     string
	Columns   []Column
	Rows      [][]string
	EmptyText string
	// Width overrides terminal detection; the last column wraps to fit.
	Width        int
	MinWrapWidth int
}

func PrintTable(out io.Writer, opts TableOptions) {
	if out == nil {
		out = os.Stdout
	}
	if title := strings.TrimSpace(opts.Title); title != "" {
		fmt.Fprintln(out, Headerf("%s (%d)", title, len(opts.Rows)))
	}
	if len(opts.Rows) == 0 || len(opts.Columns) == 0 {
		empty := strings.TrimSpace(opts.EmptyText)
		if empty == "" {
			empty = "No entries."
		}
		fmt.Fprintln(out, Warn(empty))
		return
	}

	last := len(opts.Columns) - 1
	widths := make([]int, len(opts.Columns))
	for i, col := range opts.Columns {
		widths[i] = utf8.RuneCountInString(col.Header)
	}
	for _, row := range opts.Rows {
		for i := 0; i < last && i < len(row); i++ {
			if w := utf8.RuneCountInString(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}
	widths[last] = wrapWidth(out, widths[:last], opts.Width, opts.MinWrapWidth)

	headers := make([]string, len(opts.Columns))
	rules := make([]string, len(opts.Columns))
	for i, col := range opts.Columns {
		headers[i] = Key(padRight(col.Header, widths[i]))
		rules[i] = Dim(strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(out, strings.Join(headers, "  "))
	fmt.Fprintln(out, strings.Join(rules, "  "))

	for _, row := range opts.Rows {
		cells := make([]string, len(opts.Columns))
		for i := 0; i < last; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = padRight(cell, widths[i])
			if style := opts.Columns[i].Style; style != nil {
				cells[i] = style(cells[i])
			}
		}
		tail := ""
		if last < len(row) {
			tail = row[last]
		}
		lines := wrapText(tail, widths[last])
		cells[last] = lines[0]
		fmt.Fprintln(out, strings.Join(cells, "  "))

		indent := 0
		for i := 0; i < last; i++ {
			indent += widths[i] + 2
		}
		for _, line := range lines[1:] {
			fmt.Fprintln(out, strings.Repeat(" ", indent)+line)
		}
	}
}

func wrapWidth(out io.Writer, fixed []int, width, minWidth int) int {
	if width <= 0 {
		width = defaultTableWidth
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
				width = tw
			}
		}
	}
	if minWidth <= 0 {
		minWidth = defaultMinWrapWidth
	}
	for _, w := range fixed {
		width -= w + 2
	}
	if width < minWidth {
		return minWidth
	}
	return width
}

func padRight(s string, width int) string {
	if missing := width - utf8.RuneCountInString(s); missing > 0 {
		return s + strings.Repeat(" ", missing)
	}
	return s
}

// wrapText breaks on spaces and hard-splits words longer than width.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	current := ""
	for _, word := range words {
		for utf8.RuneCountInString(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		switch {
		case word == "":
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

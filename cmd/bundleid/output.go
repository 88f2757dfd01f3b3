package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"bundleid/internal/preflight"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// column describes one table column; numeric columns are right aligned.
type column struct {
	title   string
	numeric bool
}

func columns(titles ...string) []column {
	out := make([]column, len(titles))
	for i, t := range titles {
		out[i] = column{title: t}
	}
	return out
}

// renderTable draws rows under cols. Missing cells render blank.
func renderTable(title string, cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title != "" {
		tw.SetTitle("%s", title)
	}

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, col := range cols {
		header[i] = col.title
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft, Align: text.AlignLeft}
		if col.numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// tone classifies a status line.
type tone int

const (
	toneInfo tone = iota
	toneOK
	toneWarn
	toneError
)

const (
	ansiReset  = "\x1b[0m"
	labelWidth = 22
)

var toneStyles = map[tone]struct{ label, color string }{
	toneInfo:  {"INFO", "\x1b[34m"},
	toneOK:    {"OK", "\x1b[32m"},
	toneWarn:  {"WARN", "\x1b[33m"},
	toneError: {"ERROR", "\x1b[31m"},
}

// console formats human-facing lines, with ANSI color when the target is a
// terminal.
type console struct {
	color bool
}

func consoleFor(w io.Writer) console {
	f, ok := w.(*os.File)
	if !ok {
		return console{}
	}
	return console{color: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())}
}

// status renders "  Label:    [TONE] message".
func (c console) status(label string, t tone, message string) string {
	style := toneStyles[t]
	badge := "[" + style.label + "]"
	if message != "" {
		badge += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", labelWidth, label+":", badge)
	if c.color {
		return style.color + line + ansiReset
	}
	return line
}

// section renders a "== Title ==" banner underlined to its width.
func (c console) section(title string) string {
	banner := "== " + strings.TrimSpace(title) + " =="
	block := banner + "\n" + strings.Repeat("-", len(banner))
	if c.color {
		return toneStyles[toneInfo].color + block + ansiReset
	}
	return block
}

// preflightTone reports failed optional checks as warnings.
func preflightTone(result preflight.Result) tone {
	switch {
	case result.Passed:
		return toneOK
	case result.Optional:
		return toneWarn
	}
	return toneError
}

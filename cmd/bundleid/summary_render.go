package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bundleid/internal/workflow"
)

func renderSummary(summary workflow.Summary, con console) string {
	counts := [][]string{
		{"Records", strconv.Itoa(summary.Total)},
		{"Processed", strconv.Itoa(summary.Processed)},
		{"Updated", strconv.Itoa(summary.Updated)},
		{"Verified", strconv.Itoa(summary.Verified)},
		{"Synced from file", strconv.Itoa(summary.Synced)},
		{"Unknown", strconv.Itoa(summary.Unknown)},
		{"Skipped (cached)", strconv.Itoa(summary.Skipped)},
		{"Errored", strconv.Itoa(summary.Errored)},
	}
	countCols := []column{{title: "Outcome"}, {title: "Count", numeric: true}}
	blocks := []string{
		con.section("Run " + summary.RunID),
		renderTable("", countCols, counts),
	}

	if sources := summary.Sources(); len(sources) > 0 {
		rows := make([][]string, len(sources))
		for i, s := range sources {
			rows[i] = []string{s.Source, strconv.Itoa(s.Count)}
		}
		blocks = append(blocks, renderTable("Resolved by", []column{{title: "Source"}, {title: "Count", numeric: true}}, rows))
	}

	if summary.CutoffReached {
		blocks = append(blocks, con.status("Cutoff", toneWarn, "processing limit reached; re-run to continue"))
	}
	if summary.Interrupted {
		blocks = append(blocks, con.status("Interrupted", toneWarn, "run stopped before the last record"))
	}
	if summary.Errored > 0 {
		blocks = append(blocks, con.status("Errors", toneError, fmt.Sprintf("%d record(s) failed; see logs", summary.Errored)))
	}
	blocks = append(blocks, con.status("Duration", toneInfo, summary.Duration.Round(time.Millisecond).String()))
	return strings.Join(blocks, "\n")
}

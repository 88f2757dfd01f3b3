package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bundleid/internal/runhistory"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs or the outcomes of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runhistory.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			if id := strings.TrimSpace(runID); id != "" {
				return showRun(cmd, store, id, jsonOut)
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format(time.DateTime),
					run.Status,
					strconv.Itoa(run.Counts.Processed),
					strconv.Itoa(run.Counts.Updated),
					strconv.Itoa(run.Counts.Unknown),
					strconv.Itoa(run.Counts.Errored),
					yesNo(run.CutoffReached),
				})
			}
			cols := columns("Run", "Started", "Status", "Processed", "Updated", "Unknown", "Errored", "Cutoff")
			for i := 3; i <= 6; i++ {
				cols[i].numeric = true
			}
			fmt.Fprintln(out, renderTable("", cols, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the per-record outcomes of one run")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func showRun(cmd *cobra.Command, store *runhistory.Store, id string, jsonOut bool) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %q not found", id)
	}
	resolutions, err := store.RunResolutions(cmd.Context(), id)
	if err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(cmd, struct {
			Run         *runhistory.Run         `json:"run"`
			Resolutions []runhistory.Resolution `json:"resolutions"`
		}{run, resolutions})
	}

	rows := make([][]string, 0, len(resolutions))
	for _, res := range resolutions {
		rows = append(rows, []string{
			res.RecordKey,
			res.Outcome,
			dash(res.Identifier),
			dash(res.PreviousIdentifier),
			dash(res.Source),
			strings.Join(res.MethodsTried, ","),
		})
	}
	title := fmt.Sprintf("Run %s (%s)", run.ID, run.Status)
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(title, columns("Key", "Outcome", "Identifier", "Previous", "Source", "Methods"), rows))
	if run.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", run.Error)
	}
	return nil
}

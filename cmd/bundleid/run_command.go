package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bundleid/internal/config"
	"bundleid/internal/preflight"
	"bundleid/internal/records"
	"bundleid/internal/session"
	"bundleid/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var maxProcessed int
	var recordsDir string
	var jsonOut bool
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Verify identifiers for every record in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("force") {
				cfg.Run.ForceRecheck = force
			}
			if cmd.Flags().Changed("max") {
				if maxProcessed < 0 {
					return errors.New("--max must be zero or greater")
				}
				limit := maxProcessed
				cfg.Run.MaxProcessed = &limit
			}
			if dir := strings.TrimSpace(recordsDir); dir != "" {
				expanded, err := config.ExpandPath(dir)
				if err != nil {
					return fmt.Errorf("resolve records dir: %w", err)
				}
				cfg.Paths.RecordsDir = expanded
			}

			if !skipPreflight {
				if err := preflightError(preflight.RunAll(cmd.Context(), cfg, preflight.Options{})); err != nil {
					return err
				}
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			refs, err := records.Discover(cfg.Paths.RecordsDir)
			if err != nil {
				return err
			}

			sess, err := session.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			summary, runErr := workflow.FromSession(sess).Run(cmd.Context(), refs)
			if summary.RunID != "" {
				if jsonOut {
					if err := writeJSON(cmd, summary); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					fmt.Fprintln(out, renderSummary(summary, consoleFor(out)))
					if summary.Unknown > 0 {
						fmt.Fprintf(out, "Unresolved report: %s\n", cfg.Paths.ReportPath)
					}
				}
			}
			if runErr == nil && summary.Interrupted {
				return context.Canceled
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-resolve every record, ignoring the cache")
	cmd.Flags().IntVar(&maxProcessed, "max", 0, "Stop after this many records required a lookup")
	cmd.Flags().StringVar(&recordsDir, "records-dir", "", "Directory holding the record JSON files")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the run summary as JSON")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without checking directories first")
	return cmd
}

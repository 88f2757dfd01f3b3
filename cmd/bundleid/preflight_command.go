package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bundleid/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, credentials, and service reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Network: !offline})
			if jsonOut {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				con := consoleFor(out)
				fmt.Fprintln(out, con.section("Preflight"))
				for _, result := range results {
					fmt.Fprintln(out, con.status(result.Name, preflightTone(result), result.Detail))
				}
			}
			return preflightError(results)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip network checks")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit results as JSON")
	return cmd
}

func preflightError(results []preflight.Result) error {
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for _, result := range failed {
		names = append(names, fmt.Sprintf("%s (%s)", result.Name, result.Detail))
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(names, "; "))
}

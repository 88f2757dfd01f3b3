package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bundleid/internal/records"
	"bundleid/internal/resolution"
	"bundleid/internal/session"
	"bundleid/internal/textutil"
)

type resolveOutput struct {
	Key          string   `json:"key"`
	Name         string   `json:"name"`
	Current      string   `json:"currentIdentifier,omitempty"`
	Identifier   string   `json:"identifier,omitempty"`
	Source       string   `json:"source,omitempty"`
	MethodsTried []string `json:"methodsTried"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var artifactURL string
	var publisher string
	var homepage string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "resolve <record.json | name>",
		Short: "Run the resolution pipeline for one record without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			rec, err := recordFromArg(args[0])
			if err != nil {
				return err
			}
			if v := strings.TrimSpace(artifactURL); v != "" {
				rec.ArtifactURL = v
			}
			if v := strings.TrimSpace(publisher); v != "" {
				rec.Publisher = v
			}
			if v := strings.TrimSpace(homepage); v != "" {
				rec.Homepage = v
			}

			sess, err := session.New(cmd.Context(), cfg, logger, session.WithoutHistory())
			if err != nil {
				return err
			}
			defer sess.Close()

			result := sess.Pipeline.Resolve(cmd.Context(), rec)
			output := resolveOutput{
				Key:          rec.Key,
				Name:         rec.Name,
				Current:      rec.Identifier,
				Identifier:   result.Identifier,
				Source:       result.Source,
				MethodsTried: result.MethodsTried,
			}
			if jsonOut {
				return writeJSON(cmd, output)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderResolve(output, result, consoleFor(cmd.OutOrStdout())))
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactURL, "artifact-url", "", "Installer URL to inspect")
	cmd.Flags().StringVar(&publisher, "publisher", "", "Publisher name used for catalog matching")
	cmd.Flags().StringVar(&homepage, "homepage", "", "Homepage passed to assisted search")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the result as JSON")
	return cmd
}

// recordFromArg loads a record file when arg names one, otherwise treats arg
// as an application name.
func recordFromArg(arg string) (records.Record, error) {
	arg = strings.TrimSpace(arg)
	if strings.EqualFold(filepath.Ext(arg), ".json") {
		if _, err := os.Stat(arg); err == nil {
			return records.Load(records.RefForPath(arg))
		}
	}
	if arg == "" {
		return records.Record{}, fmt.Errorf("record name is required")
	}
	return records.Record{Key: textutil.SanitizeToken(arg), Name: arg}, nil
}

func renderResolve(output resolveOutput, result resolution.Result, con console) string {
	lines := []string{con.section(output.Name)}
	if result.Resolved() {
		t := toneOK
		if output.Current != "" && output.Current != output.Identifier {
			t = toneWarn
		}
		lines = append(lines,
			con.status("Identifier", t, output.Identifier),
			con.status("Source", toneInfo, output.Source))
	} else {
		lines = append(lines, con.status("Identifier", toneError, "not found"))
	}
	if output.Current != "" {
		lines = append(lines, con.status("Record identifier", toneInfo, output.Current))
	}
	lines = append(lines, con.status("Methods tried", toneInfo, strings.Join(output.MethodsTried, ", ")))
	return strings.Join(lines, "\n")
}

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"bundleid/internal/logging"
	"bundleid/internal/verifycache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and edit the verification cache",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheShowCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func openCache(ctx *commandContext) (*verifycache.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return verifycache.Open(cfg.Paths.CachePath, logging.NewNop()), nil
}

// withCacheLock runs fn while holding the run lock so edits never race a run.
func withCacheLock(cache *verifycache.Store, fn func() error) error {
	lock := flock.New(cache.Path() + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return errors.New("a run is in progress; try again when it finishes")
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			status = strings.ToLower(strings.TrimSpace(status))
			entries := make([]verifycache.Entry, 0, cache.Count())
			for _, entry := range cache.List() {
				if status == "" || entry.Status == status {
					entries = append(entries, entry)
				}
			}
			if jsonOut {
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.Key,
					entry.Status,
					dash(entry.IdentifierValue()),
					dash(entry.SourceValue()),
					entry.LastCheckedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable("", columns("Key", "Status", "Identifier", "Source", "Last Checked"), rows))
			snapshot := cache.Snapshot()
			if snapshot.LastFullScan != nil {
				fmt.Fprintf(out, "Last full scan: %s\n", snapshot.LastFullScan.Local().Format(time.DateTime))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show entries with this status (verified, updated, unknown)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit entries as JSON")
	return cmd
}

func newCacheShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Show one cache entry as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			entry, ok := cache.Lookup(strings.TrimSpace(args[0]))
			if !ok {
				return fmt.Errorf("key %q not found in cache", args[0])
			}
			return writeJSON(cmd, entry)
		},
	}
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key>...",
		Short: "Remove entries so the next run resolves them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			return withCacheLock(cache, func() error {
				for _, key := range args {
					if err := cache.Remove(strings.TrimSpace(key)); err != nil {
						return err
					}
				}
				if err := cache.Save(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entr%s\n", len(args), plural(len(args), "y", "ies"))
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the cache without --yes")
			}
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			return withCacheLock(cache, func() error {
				count := cache.Count()
				cache.Clear()
				if err := cache.Save(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cache entr%s\n", count, plural(count, "y", "ies"))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm clearing the cache")
	return cmd
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

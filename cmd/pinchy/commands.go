package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pinchy/internal/collector"
	"pinchy/internal/khal"
)

func newCollectCmd(opts *options) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Write the dashboard snapshot",
		Long: `Write <data_dir>/data.json once, or keep writing it on the
collect_cron schedule with --watch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			if watch {
				return a.collector.Run(cmd.Context())
			}
			if err := a.collector.Collect(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), collector.SnapshotPath(a.cfg.DataDir))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep collecting on the cron schedule")
	return cmd
}

func newEventsCmd(opts *options) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print upcoming events as JSON",
		Example: `  pinchy events
  pinchy events --days 14`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = a.cfg.DaysAhead
			}
			return printJSON(cmd.OutOrStdout(), a.agenda.Events(cmd.Context(), days))
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "days ahead to look (1-90)")
	return cmd
}

func newCalendarsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "calendars",
		Aliases: []string{"discover"},
		Short:   "List discovered calendar collections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.agenda.Discover(cmd.Context()))
		},
	}
}

func newDebugCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Explain where events come from",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.agenda.Debug(cmd.Context()))
		},
	}
}

// newParseCmd needs no config; it only runs the khal text parser.
func newParseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "parse",
		Short:   "Parse khal list output from stdin",
		Example: `  khal list today 7d --format '{start-date} {start-time} {end-time} {title}' | pinchy parse`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applyLogLevel("", opts.verbose)
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), khal.Parse(string(raw)))
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pinchy/internal/agenda"
	"pinchy/internal/collector"
	"pinchy/internal/config"
	"pinchy/internal/gateway"
	appLog "pinchy/internal/log"
)

const version = "0.1.0"

// options holds persistent flag values shared by every subcommand.
type options struct {
	configPath string
	envFile    string
	verbose    bool
}

// app is the wired service graph built from the loaded config.
type app struct {
	cfg       *config.Config
	agenda    *agenda.Service
	collector *collector.Collector
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "pinchy",
		Short: "Pinchy - calendar backend for the OpenClaw dashboard",
		Long: `Pinchy reads vdirsyncer calendar trees and serves upcoming events
to the dashboard. When no local events are available it asks the OpenClaw
gateway for khal output instead.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "config file path")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newCollectCmd(opts),
		newEventsCmd(opts),
		newCalendarsCmd(opts),
		newDebugCmd(opts),
		newParseCmd(opts),
	)
	return root
}

// loadApp reads .env and the config file, applies the log level and wires
// the services.
func loadApp(opts *options) (*app, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		appLog.Warn("failed to load env file", "path", opts.envFile, "err", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config %s: %w", opts.configPath, err)
		}
		appLog.Error("failed to write default config; continuing with defaults", err, "config_path", opts.configPath)
	}

	applyLogLevel(cfg.LogLevel, opts.verbose)

	appLog.Debug("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"calendar_path", cfg.CalendarPath,
		"enabled_calendars", len(cfg.EnabledCalendars),
		"days_ahead", cfg.DaysAhead,
		"collect_cron", cfg.CollectCron,
		"gateway_configured", cfg.Gateway.Configured(),
	)

	svc := agenda.New(cfg, gateway.NewClient(cfg.Gateway))
	svc.OnDetected = func(path string) error {
		return config.UpdateFile(opts.configPath, func(c *config.Config) {
			c.CalendarPath = path
		})
	}

	return &app{
		cfg:       cfg,
		agenda:    svc,
		collector: collector.New(cfg, svc),
	}, nil
}

func applyLogLevel(name string, verbose bool) {
	if verbose {
		appLog.SetLevel(appLog.LevelDebug)
		return
	}
	lvl, ok := appLog.ParseLevel(name)
	if !ok {
		appLog.Warn("unknown log level; using info", "log_level", name)
	}
	appLog.SetLevel(lvl)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appLog "pinchy/internal/log"
	"pinchy/internal/web"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		listen  string
		collect bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API",
		Long: `Serve the dashboard JSON API and the embedded UI.

With --collect (the default) the snapshot collector runs on the
configured cron schedule alongside the server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			if listen != "" {
				a.cfg.Listen = listen
			}

			appLog.Info("pinchy starting", "version", version, "listen", a.cfg.Listen, "collect", collect)

			srv := web.NewServer(a.cfg, a.agenda, a.collector)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return srv.ListenAndServe(ctx) })
			if collect {
				g.Go(func() error { return a.collector.Run(ctx) })
			}
			err = g.Wait()
			appLog.Info("pinchy exiting")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&collect, "collect", true, "run the background snapshot collector")
	return cmd
}

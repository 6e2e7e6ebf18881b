package cli

import (
	"context"

	"github.com/spf13/cobra"

	"recurcal/internal/agenda"
	"recurcal/internal/ics"
	appLog "recurcal/internal/log"
	"recurcal/internal/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and refresh feeds on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			a, err := agenda.New(cfg, ics.NewFetcher(cfg.CacheDir, nil))
			if err != nil {
				return err
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"refresh", cfg.RefreshCron,
				"horizon_days", cfg.HorizonDays,
				"ics_count", len(cfg.ICS),
				"rule_count", len(cfg.Rules),
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			runErr := make(chan error, 1)
			go func() { runErr <- a.Run(ctx) }()

			err = web.NewServer(cfg, a).Serve(ctx)
			cancel()
			if rerr := <-runErr; err == nil {
				err = rerr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	return cmd
}

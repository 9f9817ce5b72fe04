package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/studyplan/internal/config"
	"github.com/MikeSquared-Agency/studyplan/internal/hermes"
)

func newEventsCmd() *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print roadmap events from NATS as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.NatsURL == "" {
				return fmt.Errorf("NATS_URL is required")
			}
			logger := setupLogging(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
			if err != nil {
				return err
			}
			defer hc.Close()

			out := cmd.OutOrStdout()
			if err := hc.Subscribe(subject, func(subject string, data []byte) {
				fmt.Fprintf(out, "%s %s\n", subject, data)
			}); err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", hermes.SubjectAll, "Subject to subscribe to")
	return cmd
}

package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"meeting-insights-go/internal/config"
)

func NewWorkerCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume pipeline jobs from the shared queue",
		Long:  "Runs pipeline workers without the HTTP API. Requires QUEUE_DRIVER=nats, DATABASE_URL and VECTOR_DRIVER=postgres so that jobs, meetings and search chunks are shared with 'serve --no-workers'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := deps.loadConfig()
			if err != nil {
				return err
			}
			if err := checkShared(cfg); err != nil {
				return err
			}
			a, err := build(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Workers.Run(ctx)
			return nil
		},
	}
}

// checkShared rejects settings under which a standalone worker would write
// results no API process can see.
func checkShared(cfg *config.Config) error {
	var errs []error
	if cfg.QueueDriver != "nats" {
		errs = append(errs, errors.New("worker needs a shared queue: set QUEUE_DRIVER=nats"))
	}
	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("worker needs shared storage: set DATABASE_URL"))
	}
	if cfg.VectorDriver != "postgres" {
		errs = append(errs, errors.New("worker needs a shared search index: set VECTOR_DRIVER=postgres"))
	}
	return errors.Join(errs...)
}

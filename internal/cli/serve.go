package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func NewServeCmd(deps *Dependencies) *cobra.Command {
	var noWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the pipeline workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := deps.open(ctx, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			workerCtx, cancelWorkers := context.WithCancel(context.Background())
			var wg sync.WaitGroup
			if !noWorkers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					a.Workers.Run(workerCtx)
				}()
			}

			addr := fmt.Sprintf(":%d", a.Config.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      a.Server().Handler(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.Log.WithField("addr", addr).Info("listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			var serveErr error
			select {
			case <-ctx.Done():
				a.Log.Info("shutting down")
			case serveErr = <-errCh:
				a.Log.WithError(serveErr).Error("server terminated")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.Log.WithError(err).Warn("http shutdown incomplete")
			}

			// Workers finish the job in hand before returning.
			cancelWorkers()
			wg.Wait()
			return serveErr
		},
	}

	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "Serve the API only; jobs are consumed by separate 'worker' processes")

	return cmd
}

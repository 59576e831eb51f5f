package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"meeting-insights-go/internal/app"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/logger"
)

type Dependencies struct {
	ConfigPath string
}

func NewRootCmd() *cobra.Command {
	deps := &Dependencies{}

	rootCmd := &cobra.Command{
		Use:           "meetingd",
		Short:         "Transcribe meetings and extract insights",
		Long:          "Uploads meeting recordings, transcribes them with a Whisper server, extracts summaries, action items and decisions with an Ollama model, and answers questions about them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&deps.ConfigPath, "config", "", "TOML config file (defaults to $MEETINGS_CONFIG)")

	rootCmd.AddCommand(NewServeCmd(deps))
	rootCmd.AddCommand(NewWorkerCmd(deps))
	rootCmd.AddCommand(NewProcessCmd(deps))
	rootCmd.AddCommand(NewAskCmd(deps))
	rootCmd.AddCommand(NewExportCmd(deps))

	return rootCmd
}

// open loads configuration and builds the application. Logs go to logOut.
func (d *Dependencies) open(ctx context.Context, logOut io.Writer) (*app.App, error) {
	cfg, err := d.loadConfig()
	if err != nil {
		return nil, err
	}
	return build(ctx, cfg, logOut)
}

func (d *Dependencies) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(d.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func build(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app.App, error) {
	log := logger.New(cfg.Environment, cfg.LogLevel)
	if logOut != nil {
		log.Logger.SetOutput(logOut)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

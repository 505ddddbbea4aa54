package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"uxy/pkg/telemetry"
	"uxy/services/deployer"
	"uxy/services/uxy/internal/config"
)

const serviceName = "uxy"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var failure *deployer.Failure
		if errors.As(err, &failure) {
			fmt.Fprintln(os.Stderr, "==> Deployment cancelled.")
		}
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "uxy",
		Short:         "Deploy serverless chatbots and keep their platform profile in sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVar(&a.root, "root", ".", "Project directory containing uxy.json")
	cmd.PersistentFlags().StringVar(&a.stage, "stage", "", "Deployment stage (defaults to app:stage)")

	cmd.AddCommand(newSetupCommand(a))
	cmd.AddCommand(newDeployCommand(a))
	cmd.AddCommand(newPlanCommand(a))
	cmd.AddCommand(newStatusCommand(a))
	return cmd
}

func (a *app) init(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	logger, err := telemetry.NewLogger(os.Stderr, cfg.LogLevel, !cfg.LogJSON)
	if err != nil {
		return err
	}
	a.logger = logger

	shutdown, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) close() error {
	if a.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("shutdown telemetry")
	}
	return nil
}

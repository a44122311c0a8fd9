package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lampfleet/app"
	"github.com/kilianp07/lampfleet/config"
	"github.com/kilianp07/lampfleet/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "lampfleet",
	Short: "Street lamp cassette replacement drone fleet",
	RunE:  run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fleet engine with its HTTP, WebSocket and MQTT interfaces",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (YAML or JSON); defaults plus K_ env overrides when empty")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

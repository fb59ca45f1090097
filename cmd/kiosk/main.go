package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kiosk-system/cmd/kiosk/command"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := &cobra.Command{
		Use:   "kiosk",
		Short: "Automated juice kiosk queue service",
	}
	root.PersistentFlags().StringVar(&command.ConfigPath, "config", "", "path to config file (default: probe config.yaml)")

	root.AddCommand(
		command.Serve(ctx),
		command.Dashboard(ctx),
		command.Migrate(ctx),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

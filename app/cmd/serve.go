package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/marketconnect/llm-council/app/app"
	"github.com/marketconnect/llm-council/app/internal/config"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API",
		RunE:  serveFunc,
	}
}

func serveFunc(c *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, config.GetConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			klog.Errorf("Error closing application: %v", err)
		}
	}()
	return a.Run(ctx)
}

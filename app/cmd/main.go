package main

import (
	"flag"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "llm-council",
		Short:         "Asks a council of LLM providers and merges their answers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			if path, _ := c.Flags().GetString("config"); path != "" {
				return os.Setenv("CONFIG_PATH", path)
			}
			return nil
		},
	}

	fs := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(fs)
	root.PersistentFlags().AddGoFlagSet(fs)
	root.PersistentFlags().String("config", "", "path to a YAML config file (overrides CONFIG_PATH)")

	root.AddCommand(serveCommand(), askCommand(), configCommand())
	return root
}

func main() {
	defer klog.Flush()
	if err := rootCommand().Execute(); err != nil {
		klog.Errorf("Application failed: %v", err)
		klog.Flush()
		os.Exit(1)
	}
}

package main

import (
	"github.com/marketconnect/llm-council/app/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Shows or writes the effective configuration",
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "print",
			Short: "Prints the effective configuration as YAML without API keys",
			RunE: func(c *cobra.Command, _ []string) error {
				enc := yaml.NewEncoder(c.OutOrStdout())
				defer enc.Close()
				return enc.Encode(config.GetConfig())
			},
		},
		&cobra.Command{
			Use:   "save [path]",
			Short: "Writes the effective configuration to a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return config.Save(args[0], config.GetConfig())
			},
		},
	)
	return c
}

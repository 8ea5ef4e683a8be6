package main

import (
	"encoding/json"
	"strings"

	"github.com/marketconnect/llm-council/app/app"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"github.com/marketconnect/llm-council/app/internal/config"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func askCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks every configured provider once and prints the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  askFunc,
	}
	flags := c.Flags()
	flags.String("principal", "cli", "caller identity used for rate limiting and history")
	flags.String("system", "", "system prompt sent with the question")
	flags.Bool("deliberate", false, "run a full council deliberation with reviews and a chairman")
	flags.String("context", "", "extra context for a deliberation")
	return c
}

func askFunc(c *cobra.Command, args []string) error {
	flags := c.Flags()
	principal, _ := flags.GetString("principal")
	system, _ := flags.GetString("system")
	deliberate, _ := flags.GetBool("deliberate")
	extra, _ := flags.GetString("context")
	question := strings.Join(args, " ")

	ctx := c.Context()
	a, err := app.NewApp(ctx, config.GetConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			klog.Errorf("Error closing application: %v", err)
		}
	}()

	var out any
	if deliberate {
		out, err = a.Deliberator.Run(ctx, entities.CouncilQuery{UserQuery: question, Context: extra})
	} else {
		out, err = a.Ask.QueryAICouncil(ctx, principal, question, system, nil)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

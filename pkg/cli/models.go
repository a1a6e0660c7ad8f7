package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ermine/pkg/usecase/chat"
	"github.com/urfave/cli/v3"
)

func modelsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "models",
		Usage: "List models available on the provider",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.load(); err != nil {
				return err
			}
			setting, err := cfg.chatSetting()
			if err != nil {
				return err
			}

			models, err := chat.New().ListModels(ctx, setting)
			if err != nil {
				return err
			}

			for _, m := range models {
				if m.DisplayName != "" && m.DisplayName != m.ID {
					fmt.Fprintf(c.Root().Writer, "%s\t%s\n", m.ID, m.DisplayName)
				} else {
					fmt.Fprintln(c.Root().Writer, m.ID)
				}
			}
			return nil
		},
	}
}

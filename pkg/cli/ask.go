package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/usecase/chat"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "ask",
		Usage:     "One-shot question, prints the complete reply",
		ArgsUsage: "<question>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			question := c.Args().First()
			if question == "" {
				return goerr.New("question is required")
			}

			if err := cfg.load(); err != nil {
				return err
			}
			setting, err := cfg.chatSetting()
			if err != nil {
				return err
			}
			params, err := cfg.chatParams()
			if err != nil {
				return err
			}

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
				spinner.WithWriter(c.Root().ErrWriter))
			sp.Suffix = " thinking..."
			sp.Start()

			uc := chat.New()
			reply, err := uc.GenerateText(ctx, setting,
				[]model.Message{model.NewTextMessage(model.RoleUser, question)}, params)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to generate reply")
			}

			fmt.Fprintln(c.Root().Writer, reply)
			return nil
		},
	}
}

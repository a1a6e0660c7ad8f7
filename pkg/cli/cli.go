package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/ermine/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	var logLevel string

	cmd := &cli.Command{
		Name:  "ermine",
		Usage: "Streaming LLM chat client with long-term memory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "info",
				Sources:     cli.EnvVars("ERMINE_LOG_LEVEL"),
				Destination: &logLevel,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) error {
			logging.SetDefault(logging.New(logLevel, os.Stderr))
			return nil
		},
		Commands: []*cli.Command{
			chatCommand(),
			askCommand(),
			modelsCommand(),
			memoryCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/m-mizutani/ermine/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func memoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Inspect and manage long-term memories",
		Commands: []*cli.Command{
			memoryListCommand(),
			memorySearchCommand(),
			memoryForgetCommand(),
		},
	}
}

func memoryListCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "list",
		Usage: "List all stored memories",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.load(); err != nil {
				return err
			}
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			all, err := repo.ListEmbeddings(ctx)
			if err != nil {
				return err
			}
			for _, emb := range all {
				fmt.Fprintf(c.Root().Writer, "%d\t%s\t%s\n",
					emb.ID, emb.CreatedAt.Format("2006-01-02 15:04"), emb.Text)
			}
			return nil
		},
	}
}

func memorySearchCommand() *cli.Command {
	var (
		cfg  config
		topK int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of results",
			Value:       5,
			Destination: &topK,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Find memories similar to a query",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := c.Args().First()
			if query == "" {
				return goerr.New("query is required")
			}

			if err := cfg.load(); err != nil {
				return err
			}
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}

			vector, err := embedder.Embed(ctx, query)
			if err != nil {
				return goerr.Wrap(err, "failed to embed query")
			}

			scored, err := memory.NewSearchUseCase(repo).Search(ctx, vector, int(topK))
			if err != nil {
				return err
			}
			for _, m := range scored {
				fmt.Fprintf(c.Root().Writer, "%.3f\t%d\t%s\n",
					m.Score, m.Embedding.ID, m.Embedding.Text)
			}
			return nil
		},
	}
}

func memoryForgetCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "forget",
		Usage:     "Delete a memory by ID",
		ArgsUsage: "<id>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			raw := c.Args().First()
			if raw == "" {
				return goerr.New("memory ID is required")
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return goerr.Wrap(err, "invalid memory ID", goerr.V("id", raw))
			}

			if err := cfg.load(); err != nil {
				return err
			}
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.DeleteEmbedding(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Forgot memory %d\n", id)
			return nil
		},
	}
}

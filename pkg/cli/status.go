package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func statusCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "status",
		Usage: "Check connectivity of the memory store and the vector index",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			failed := false

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				fmt.Printf("store: unavailable (%v)\n", err)
				failed = true
			} else {
				defer repo.Close()
				if err := repo.Ping(ctx); err != nil {
					fmt.Printf("store: unavailable (%v)\n", err)
					failed = true
				} else {
					fmt.Println("store: ok")
				}
			}

			index, err := cfg.newIndex()
			if err != nil {
				fmt.Printf("index: unavailable (%v)\n", err)
				failed = true
			} else if err := index.HealthCheck(ctx); err != nil {
				fmt.Printf("index: unavailable (%v)\n", err)
				failed = true
			} else {
				fmt.Println("index: ok")
			}

			if failed {
				return fmt.Errorf("one or more backends are unavailable")
			}
			return nil
		},
	}
}

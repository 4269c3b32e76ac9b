package cli

import (
	"context"
	"fmt"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg    config
		aeiID  string
		userID string
		limit  int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "aei",
			Usage:       "AEI ID to list",
			Sources:     cli.EnvVars("RECALL_AEI_ID"),
			Destination: &aeiID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "user",
			Usage:       "User ID to list",
			Sources:     cli.EnvVars("RECALL_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of memories to show",
			Value:       20,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List the newest memories of one scope",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engineCfg, err := cfg.loadEngineConfig()
			if err != nil {
				return err
			}

			uc, repo, err := cfg.newMemoryUseCase(ctx, engineCfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			memories, err := uc.List(ctx, model.AEIID(aeiID), model.UserID(userID), int(limit))
			if err != nil {
				return err
			}

			if len(memories) == 0 {
				fmt.Println("No memories found")
				return nil
			}

			for _, mem := range memories {
				fmt.Printf("%s  %-12s  %.2f  %s\n", mem.CreatedAt.Format("2006-01-02"), mem.Type, mem.Importance, mem.Content)
				fmt.Printf("           id=%s\n", mem.ID)
			}
			return nil
		},
	}
}

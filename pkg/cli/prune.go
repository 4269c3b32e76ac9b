package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/service/policy"
	"github.com/urfave/cli/v3"
)

func pruneCommand() *cli.Command {
	var (
		cfg       config
		aeiID     string
		userID    string
		policyDir string
		limit     int64
		dryRun    bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "aei",
			Usage:       "AEI ID to prune",
			Sources:     cli.EnvVars("RECALL_AEI_ID"),
			Destination: &aeiID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "user",
			Usage:       "User ID to prune",
			Sources:     cli.EnvVars("RECALL_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Directory holding prune .rego policies",
			Sources:     cli.EnvVars("RECALL_PRUNE_POLICY"),
			Destination: &policyDir,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of candidate memories to evaluate",
			Value:       500,
			Destination: &limit,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Print what would be pruned without deleting",
			Destination: &dryRun,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "prune",
		Usage: "Remove memories selected by the prune policy",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engineCfg, err := cfg.loadEngineConfig()
			if err != nil {
				return err
			}

			prunePolicy, err := policy.Load(ctx, policyDir)
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

			ids, err := prunePolicy.Evaluate(ctx, memories, time.Now())
			if err != nil {
				return err
			}

			if len(ids) == 0 {
				fmt.Println("Nothing to prune")
				return nil
			}

			if dryRun {
				byID := make(map[model.MemoryID]*model.Memory, len(memories))
				for _, mem := range memories {
					byID[mem.ID] = mem
				}
				fmt.Printf("Would prune %d memories:\n", len(ids))
				for _, id := range ids {
					fmt.Printf("  %s (%s) %s\n", id, byID[id].Type, byID[id].Content)
				}
				return nil
			}

			removed, err := uc.Forget(ctx, model.AEIID(aeiID), ids)
			if err != nil {
				return err
			}

			fmt.Printf("Pruned %d memories\n", removed)
			return nil
		},
	}
}

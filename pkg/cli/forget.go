package cli

import (
	"context"
	"fmt"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func forgetCommand() *cli.Command {
	var (
		cfg   config
		aeiID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "aei",
			Usage:       "AEI ID owning the memories",
			Sources:     cli.EnvVars("RECALL_AEI_ID"),
			Destination: &aeiID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "forget",
		Usage:     "Delete memories from both the index and the store",
		ArgsUsage: "<memory-id>...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return goerr.New("at least one memory ID is required")
			}

			engineCfg, err := cfg.loadEngineConfig()
			if err != nil {
				return err
			}

			uc, repo, err := cfg.newMemoryUseCase(ctx, engineCfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			ids := make([]model.MemoryID, 0, c.Args().Len())
			for _, arg := range c.Args().Slice() {
				ids = append(ids, model.MemoryID(arg))
			}

			removed, err := uc.Forget(ctx, model.AEIID(aeiID), ids)
			if err != nil {
				return err
			}

			fmt.Printf("Forgot %d of %d memories\n", removed, len(ids))
			return nil
		},
	}
}

package cli

import (
	"context"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func rememberCommand() *cli.Command {
	var (
		cfg        config
		aeiID      string
		userID     string
		memType    string
		importance float64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "aei",
			Usage:       "AEI ID owning the memory",
			Sources:     cli.EnvVars("RECALL_AEI_ID"),
			Destination: &aeiID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "user",
			Usage:       "User ID the memory is about",
			Sources:     cli.EnvVars("RECALL_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "type",
			Aliases:     []string{"t"},
			Usage:       "Memory type (fact, preference, event, relationship, other)",
			Value:       string(model.MemoryTypeFact),
			Destination: &memType,
		},
		&cli.FloatFlag{
			Name:        "importance",
			Usage:       "Importance score between 0.0 and 1.0",
			Value:       0.8,
			Destination: &importance,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "remember",
		Usage:     "Store a hand-curated memory",
		ArgsUsage: "<content>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return goerr.New("memory content is required")
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

			_, err = uc.Remember(ctx,
				model.AEIID(aeiID),
				model.UserID(userID),
				c.Args().First(),
				model.MemoryType(memType),
				importance,
			)
			return err
		},
	}
}

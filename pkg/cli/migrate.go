package cli

import (
	"context"
	"time"

	"github.com/aikotoba-ai/recall/pkg/adapter"
	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/usecase/migrate"
	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func migrateCommand() *cli.Command {
	var (
		cfg     config
		dataset string
		table   string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bq-dataset",
			Usage:       "BigQuery dataset holding the chat archive",
			Value:       "chat_archive",
			Sources:     cli.EnvVars("RECALL_BQ_DATASET"),
			Destination: &dataset,
		},
		&cli.StringFlag{
			Name:        "bq-table",
			Usage:       "BigQuery table holding archived messages",
			Value:       "messages",
			Sources:     cli.EnvVars("RECALL_BQ_TABLE"),
			Destination: &table,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "migrate",
		Usage:     "Migrate archived chat history into long-term memories",
		ArgsUsage: "[aei-id]",
		Flags:     flags,
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

			extractor, err := cfg.newExtractor(ctx, engineCfg)
			if err != nil {
				return err
			}

			if cfg.project == "" {
				return goerr.New("project is required")
			}
			archive, err := adapter.NewChatArchive(ctx, cfg.project, dataset, table)
			if err != nil {
				return err
			}

			migrator := migrate.New(archive, extractor, uc, engineCfg)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " migrating chat history..."
			sp.Start()
			defer sp.Stop()

			if c.Args().Len() > 0 {
				_, err = migrator.MigrateAEI(ctx, model.AEIID(c.Args().First()))
				return err
			}

			_, err = migrator.MigrateAll(ctx)
			return err
		},
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/usecase/memory"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func searchCommand() *cli.Command {
	var (
		cfg         config
		aeiID       string
		userID      string
		query       string
		limit       int64
		interactive bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "aei",
			Usage:       "AEI ID to search",
			Sources:     cli.EnvVars("RECALL_AEI_ID"),
			Destination: &aeiID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "user",
			Usage:       "User ID to search",
			Sources:     cli.EnvVars("RECALL_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Natural language query",
			Destination: &query,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of memories to return",
			Value:       10,
			Destination: &limit,
		},
		&cli.BoolFlag{
			Name:        "interactive",
			Aliases:     []string{"i"},
			Usage:       "Interactive query prompt",
			Destination: &interactive,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "search",
		Usage: "Search memories by semantic similarity",
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

			scope := searchScope{
				uc:     uc,
				aeiID:  model.AEIID(aeiID),
				userID: model.UserID(userID),
				limit:  int(limit),
			}

			if interactive {
				return scope.runInteractive(ctx)
			}

			if query == "" {
				return goerr.New("query is required unless --interactive is set")
			}
			return scope.runOnce(ctx, query)
		},
	}
}

type searchScope struct {
	uc     *memory.UseCase
	aeiID  model.AEIID
	userID model.UserID
	limit  int
}

func (s *searchScope) runOnce(ctx context.Context, query string) error {
	results, err := s.uc.Retrieve(ctx, s.aeiID, s.userID, query, s.limit)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No memories found")
		return nil
	}

	for i, mem := range results {
		fmt.Printf("%2d. [%.3f] (%s) %s\n", i+1, mem.SimilarityScore, mem.Type, mem.Content)
		fmt.Printf("    id=%s model=%s created=%s\n", mem.ID, mem.EmbeddingModel, mem.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func (s *searchScope) runInteractive(ctx context.Context) error {
	rl, err := readline.New("query> ")
	if err != nil {
		return goerr.Wrap(err, "failed to initialize readline")
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read query")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := s.runOnce(ctx, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/usecase/memory"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
)

type searchMemoriesParams struct {
	AEIID  string `json:"aei_id" jsonschema:"The AEI whose memories to search"`
	UserID string `json:"user_id" jsonschema:"The user the memories are about"`
	Query  string `json:"query" jsonschema:"Natural language query"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of memories to return (default 10)"`
}

type rememberParams struct {
	AEIID   string `json:"aei_id" jsonschema:"The AEI that owns the memory"`
	UserID  string `json:"user_id" jsonschema:"The user the memory is about"`
	Content string `json:"content" jsonschema:"One self-contained sentence about the user"`
	Type    string `json:"type,omitempty" jsonschema:"Memory type: fact, preference, event, relationship or other"`
	// Pointer so an explicit 0.0 is distinguishable from an omitted field
	Importance *float64 `json:"importance,omitempty" jsonschema:"Importance score between 0.0 and 1.0 (default 0.8)"`
}

type forgetParams struct {
	AEIID     string   `json:"aei_id" jsonschema:"The AEI that owns the memories"`
	MemoryIDs []string `json:"memory_ids" jsonschema:"IDs of the memories to delete"`
}

func serveCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the memory engine over MCP stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			engineCfg, err := cfg.loadEngineConfig()
			if err != nil {
				return err
			}

			// stdout carries the MCP protocol, so command output is muted.
			uc, repo, err := cfg.newMemoryUseCase(ctx, engineCfg, memory.WithOutput(io.Discard))
			if err != nil {
				return err
			}
			defer repo.Close()

			server := mcp.NewServer(&mcp.Implementation{
				Name:    "recall",
				Version: "1.0.0",
			}, nil)

			mcp.AddTool(server, &mcp.Tool{
				Name:        "search_memories",
				Description: "Search an AEI's long-term memories by semantic similarity",
			}, searchMemoriesTool(uc))

			mcp.AddTool(server, &mcp.Tool{
				Name:        "remember",
				Description: "Store a new long-term memory about the user",
			}, rememberTool(uc))

			mcp.AddTool(server, &mcp.Tool{
				Name:        "forget",
				Description: "Delete long-term memories by ID",
			}, forgetTool(uc))

			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}
}

func searchMemoriesTool(uc *memory.UseCase) func(context.Context, *mcp.CallToolRequest, *searchMemoriesParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, params *searchMemoriesParams) (*mcp.CallToolResult, any, error) {
		if params.Query == "" {
			return nil, nil, fmt.Errorf("query is required")
		}
		limit := params.Limit
		if limit <= 0 {
			limit = 10
		}

		results, err := uc.Retrieve(ctx, model.AEIID(params.AEIID), model.UserID(params.UserID), params.Query, limit)
		if err != nil {
			return nil, nil, err
		}

		var sb strings.Builder
		if len(results) == 0 {
			sb.WriteString("No memories found")
		} else {
			fmt.Fprintf(&sb, "Found %d memories:\n", len(results))
			for _, mem := range results {
				fmt.Fprintf(&sb, "- [%.3f] (%s) %s (id: %s)\n", mem.SimilarityScore, mem.Type, mem.Content, mem.ID)
			}
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: sb.String()},
			},
		}, nil, nil
	}
}

// rememberDefaults fills in the optional remember tool parameters. An
// omitted importance defaults to 0.8; an explicit 0.0 is kept.
func rememberDefaults(params *rememberParams) (model.MemoryType, float64) {
	memType := model.MemoryType(params.Type)
	if params.Type == "" {
		memType = model.MemoryTypeFact
	}

	importance := 0.8
	if params.Importance != nil {
		importance = *params.Importance
	}

	return memType, importance
}

func rememberTool(uc *memory.UseCase) func(context.Context, *mcp.CallToolRequest, *rememberParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, params *rememberParams) (*mcp.CallToolResult, any, error) {
		memType, importance := rememberDefaults(params)

		mem, err := uc.Remember(ctx, model.AEIID(params.AEIID), model.UserID(params.UserID), params.Content, memType, importance)
		if err != nil {
			return nil, nil, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Stored memory %s", mem.ID)},
			},
		}, nil, nil
	}
}

func forgetTool(uc *memory.UseCase) func(context.Context, *mcp.CallToolRequest, *forgetParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, params *forgetParams) (*mcp.CallToolResult, any, error) {
		if len(params.MemoryIDs) == 0 {
			return nil, nil, fmt.Errorf("memory_ids is required")
		}

		ids := make([]model.MemoryID, 0, len(params.MemoryIDs))
		for _, id := range params.MemoryIDs {
			ids = append(ids, model.MemoryID(id))
		}

		removed, err := uc.Forget(ctx, model.AEIID(params.AEIID), ids)
		if err != nil {
			return nil, nil, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Forgot %d of %d memories", removed, len(ids))},
			},
		}, nil, nil
	}
}

package cli

import (
	"context"

	"github.com/aikotoba-ai/recall/pkg/adapter"
	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/repository"
	"github.com/aikotoba-ai/recall/pkg/service/embedding"
	"github.com/aikotoba-ai/recall/pkg/usecase/extract"
	"github.com/aikotoba-ai/recall/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Engine
	configPath string

	// Repository
	project  string
	database string

	// Vector index
	qdrantURL    string
	qdrantAPIKey string

	// LLM adapters
	geminiProject   string
	geminiLocation  string
	anthropicAPIKey string
	extractBackend  string

	// Extraction failure archive
	failureBucket string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to engine config YAML",
			Sources:     cli.EnvVars("RECALL_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "qdrant-url",
			Usage:       "Qdrant base URL",
			Value:       "http://localhost:6333",
			Sources:     cli.EnvVars("QDRANT_URL"),
			Destination: &cfg.qdrantURL,
		},
		&cli.StringFlag{
			Name:        "qdrant-api-key",
			Usage:       "Qdrant API key",
			Sources:     cli.EnvVars("QDRANT_API_KEY"),
			Destination: &cfg.qdrantAPIKey,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key (for the claude extraction backend)",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "extract-backend",
			Usage:       "Fact extraction backend (gemini or claude)",
			Value:       "gemini",
			Sources:     cli.EnvVars("RECALL_EXTRACT_BACKEND"),
			Destination: &cfg.extractBackend,
		},
		&cli.StringFlag{
			Name:        "failure-bucket",
			Usage:       "GCS bucket for archiving unparseable extraction output",
			Sources:     cli.EnvVars("RECALL_FAILURE_BUCKET"),
			Destination: &cfg.failureBucket,
		},
	}
}

// loadEngineConfig loads the engine config file, or the defaults when no
// file is given
func (cfg *config) loadEngineConfig() (*model.EngineConfig, error) {
	if cfg.configPath == "" {
		engineCfg := model.DefaultEngineConfig()
		return &engineCfg, nil
	}
	return model.LoadEngineConfig(cfg.configPath)
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (*repository.Firestore, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newIndex creates a new vector index client
func (cfg *config) newIndex() (adapter.VectorIndex, error) {
	var opts []adapter.QdrantOption
	if cfg.qdrantAPIKey != "" {
		opts = append(opts, adapter.WithQdrantAPIKey(cfg.qdrantAPIKey))
	}

	index, err := adapter.NewQdrant(cfg.qdrantURL, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create vector index client")
	}
	return index, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
}

// newMemoryUseCase wires the repository, the vector index and the
// embedding router into the memory usecase
func (cfg *config) newMemoryUseCase(ctx context.Context, engineCfg *model.EngineConfig, opts ...memory.Option) (*memory.UseCase, *repository.Firestore, error) {
	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	index, err := cfg.newIndex()
	if err != nil {
		return nil, nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, nil, err
	}

	router := embedding.NewRouter(gemini, engineCfg)
	return memory.New(repo, index, router, engineCfg, opts...), repo, nil
}

// newExtractor builds the fact extractor with the selected backend
func (cfg *config) newExtractor(ctx context.Context, engineCfg *model.EngineConfig) (*extract.Extractor, error) {
	var backend extract.Backend

	switch cfg.extractBackend {
	case "gemini":
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		backend, err = extract.NewGeminiBackend(gemini)
		if err != nil {
			return nil, err
		}

	case "claude":
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required for the claude backend")
		}
		backend = extract.NewClaudeBackend(adapter.NewClaude(cfg.anthropicAPIKey))

	default:
		return nil, goerr.New("unknown extraction backend", goerr.V("backend", cfg.extractBackend))
	}

	var opts []extract.Option
	if cfg.failureBucket != "" {
		storage, err := adapter.NewStorage(ctx, cfg.failureBucket)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create failure archive storage")
		}
		opts = append(opts, extract.WithStorage(storage))
	}

	return extract.New(backend, engineCfg, opts...), nil
}

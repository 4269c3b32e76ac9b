package memory

import (
	"io"
	"os"

	"github.com/aikotoba-ai/recall/pkg/adapter"
	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/repository"
	"github.com/aikotoba-ai/recall/pkg/service/embedding"
)

// UseCase couples the metadata store and the vector index into one memory
// engine. Every write and delete touches both sides; the coupling rules
// live here, not in the adapters.
type UseCase struct {
	repo   repository.Repository
	index  adapter.VectorIndex
	router *embedding.Router
	cfg    *model.EngineConfig
	output io.Writer
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithOutput sets the output writer
func WithOutput(w io.Writer) Option {
	return func(uc *UseCase) {
		uc.output = w
	}
}

// New creates a new memory UseCase instance
func New(
	repo repository.Repository,
	index adapter.VectorIndex,
	router *embedding.Router,
	cfg *model.EngineConfig,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:   repo,
		index:  index,
		router: router,
		cfg:    cfg,
		output: os.Stdout,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

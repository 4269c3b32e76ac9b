package embedding

import (
	"context"

	"github.com/aikotoba-ai/recall/pkg/adapter"
	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Router selects the embedding model tier for a memory and invokes the
// backend to obtain its vector. Tier choice is a write-time property,
// recorded on the record; it is never recomputed at read time.
//
// The router speaks to exactly one provider family. There is no fallback to
// another provider: vectors from mixed providers inside one collection would
// make similarity scores incomparable.
type Router struct {
	gemini adapter.Gemini
	cfg    *model.EngineConfig
}

// NewRouter creates a tier router over the configured Gemini client
func NewRouter(gemini adapter.Gemini, cfg *model.EngineConfig) *Router {
	return &Router{
		gemini: gemini,
		cfg:    cfg,
	}
}

// Embed returns the vector and the identifier of the model that produced it.
// The quality tier is used when the importance hint exceeds the configured
// threshold, or when the caller explicitly asks for high fidelity (e.g.
// migration of previously validated facts).
func (r *Router) Embed(ctx context.Context, text string, importanceHint float64, highFidelity bool) ([]float32, string, error) {
	tier := r.cfg.DefaultTier
	if highFidelity || importanceHint > r.cfg.QualityThreshold {
		tier = r.cfg.QualityTier
	}
	return r.embedWithTier(ctx, text, tier)
}

// EmbedQuery embeds retrieval query text with the default tier. Cross-tier
// comparison works because all tiers emit vectors at one shared
// dimensionality (enforced by EngineConfig.Validate).
func (r *Router) EmbedQuery(ctx context.Context, text string) ([]float32, string, error) {
	return r.embedWithTier(ctx, text, r.cfg.DefaultTier)
}

func (r *Router) embedWithTier(ctx context.Context, text string, tier model.EmbeddingTier) ([]float32, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	vec, err := r.gemini.Embedding(ctx, text, tier.Model, tier.Dimensions)
	if err != nil {
		return nil, "", goerr.Wrap(model.ErrBackendUnavailable, "embedding call failed",
			goerr.V("model", tier.Model), goerr.V("cause", err.Error()))
	}
	if len(vec) != tier.Dimensions {
		return nil, "", goerr.Wrap(model.ErrBackendUnavailable, "embedding has unexpected dimensionality",
			goerr.V("model", tier.Model),
			goerr.V("want", tier.Dimensions), goerr.V("got", len(vec)))
	}

	return vec, tier.Model, nil
}

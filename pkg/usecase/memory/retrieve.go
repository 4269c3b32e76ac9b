package memory

import (
	"context"
	"errors"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Retrieve searches one (AEI, user) scope for memories relevant to the
// query text. Results carry their similarity score and come back in
// descending similarity order.
//
// Vector hits whose metadata row is gone or never committed are dropped
// and logged; the index oversamples to keep the result count stable when
// that happens.
func (uc *UseCase) Retrieve(ctx context.Context, aeiID model.AEIID, userID model.UserID, query string, limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	vector, _, err := uc.router.EmbedQuery(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	collection := uc.cfg.CollectionName(aeiID)
	hits, err := uc.index.Search(ctx, collection, vector, limit*2)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memory index", goerr.V("collection", collection))
	}

	logger := logging.From(ctx)
	results := make([]*model.Memory, 0, limit)
	for _, hit := range hits {
		if len(results) >= limit {
			break
		}

		mem, err := uc.repo.GetMemory(ctx, hit.ID)
		if err != nil {
			if errors.Is(err, model.ErrMemoryNotFound) {
				logger.Warn("dropping dangling vector without metadata row", "memory_id", hit.ID)
				continue
			}
			return nil, goerr.Wrap(err, "failed to load memory record", goerr.V("memory_id", hit.ID))
		}

		if !mem.Committed {
			logger.Warn("dropping uncommitted memory from results", "memory_id", hit.ID)
			continue
		}
		if mem.UserID != userID {
			continue
		}

		mem.SimilarityScore = hit.Similarity
		results = append(results, mem)
	}

	return results, nil
}

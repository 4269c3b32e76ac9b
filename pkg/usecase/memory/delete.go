package memory

import (
	"context"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Forget removes memories from both the vector index and the metadata
// store. The vector side goes first: a metadata row without a vector is
// just unreachable, but a vector without a row is a dangling hit that
// retrieval has to repair around.
//
// Returns how many memory rows existed. Unknown IDs are not an error.
func (uc *UseCase) Forget(ctx context.Context, aeiID model.AEIID, ids []model.MemoryID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	collection := uc.cfg.CollectionName(aeiID)
	if err := uc.index.Delete(ctx, collection, ids); err != nil {
		return 0, goerr.Wrap(err, "failed to delete memory vectors", goerr.V("collection", collection))
	}

	removed, err := uc.repo.DeleteMemories(ctx, ids)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to delete memory records")
	}

	return removed, nil
}

// List returns the newest memories of one (AEI, user) scope without
// touching the vector index.
func (uc *UseCase) List(ctx context.Context, aeiID model.AEIID, userID model.UserID, limit int) ([]*model.Memory, error) {
	memories, err := uc.repo.ListMemories(ctx, aeiID, userID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories")
	}
	return memories, nil
}

package memory

import (
	"context"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// WriteFacts persists candidate facts for one (AEI, user) scope. Each fact
// becomes a memory record plus a vector point under the same ID. The row is
// written first in provisional state and committed only after the vector
// upsert succeeds, so a failure between the two sides never leaves a live
// half-written memory.
//
// Returns the memories that were fully committed. On error the returned
// slice holds the facts committed before the failure.
func (uc *UseCase) WriteFacts(ctx context.Context, aeiID model.AEIID, userID model.UserID, sessionID model.SessionID, facts []model.CandidateFact, highFidelity bool) ([]*model.Memory, error) {
	if len(facts) == 0 {
		return nil, nil
	}

	collection := uc.cfg.CollectionName(aeiID)
	if err := uc.index.EnsureCollection(ctx, collection, uc.cfg.DefaultTier.Dimensions); err != nil {
		return nil, goerr.Wrap(err, "failed to ensure collection", goerr.V("collection", collection))
	}

	stored := make([]*model.Memory, 0, len(facts))
	for _, fact := range facts {
		mem, err := uc.writeFact(ctx, collection, aeiID, userID, sessionID, fact, highFidelity)
		if err != nil {
			return stored, err
		}
		stored = append(stored, mem)
	}

	return stored, nil
}

func (uc *UseCase) writeFact(ctx context.Context, collection string, aeiID model.AEIID, userID model.UserID, sessionID model.SessionID, fact model.CandidateFact, highFidelity bool) (*model.Memory, error) {
	vector, embModel, err := uc.router.Embed(ctx, fact.Content, fact.Importance, highFidelity)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed fact")
	}

	mem := &model.Memory{
		AEIID:          aeiID,
		UserID:         userID,
		SessionID:      sessionID,
		Content:        fact.Content,
		Type:           fact.Type,
		Importance:     fact.Importance,
		EmbeddingModel: embModel,
	}

	if err := uc.repo.PutMemory(ctx, mem); err != nil {
		return nil, goerr.Wrap(err, "failed to save memory record")
	}

	payload := map[string]any{
		"aei_id":     string(aeiID),
		"user_id":    string(userID),
		"type":       string(fact.Type),
		"importance": fact.Importance,
	}
	if err := uc.index.Upsert(ctx, collection, mem.ID, vector, payload); err != nil {
		uc.rollbackRecord(ctx, mem.ID)
		return nil, goerr.Wrap(err, "failed to index memory vector", goerr.V("memory_id", mem.ID))
	}

	if err := uc.repo.CommitMemory(ctx, mem.ID); err != nil {
		// The provisional row is invisible to reads, so leave both sides
		// for the repair path instead of risking a second partial write.
		return nil, goerr.Wrap(err, "failed to commit memory record", goerr.V("memory_id", mem.ID))
	}
	mem.Committed = true

	return mem, nil
}

// rollbackRecord removes the provisional row after a vector upsert failed.
func (uc *UseCase) rollbackRecord(ctx context.Context, id model.MemoryID) {
	if _, err := uc.repo.DeleteMemories(ctx, []model.MemoryID{id}); err != nil {
		logging.From(ctx).Error("failed to roll back provisional memory record",
			"error", goerr.Wrap(model.ErrOrphanedRecord, "compensating delete failed", goerr.V("memory_id", id)),
		)
	}
}

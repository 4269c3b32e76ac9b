package memory

import (
	"context"
	"fmt"

	"github.com/aikotoba-ai/recall/pkg/model"
)

// Remember stores a single hand-curated memory. Explicit curation always
// goes through the quality embedding tier; someone cared enough to type
// it in.
func (uc *UseCase) Remember(ctx context.Context, aeiID model.AEIID, userID model.UserID, content string, memType model.MemoryType, importance float64) (*model.Memory, error) {
	fact := model.CandidateFact{
		Type:       memType,
		Content:    content,
		Importance: importance,
	}

	stored, err := uc.WriteFacts(ctx, aeiID, userID, "", []model.CandidateFact{fact}, true)
	if err != nil {
		return nil, err
	}

	mem := stored[0]
	fmt.Fprintf(uc.output, "Remembered %s [%s] %s\n", mem.ID, mem.Type, mem.Content)
	return mem, nil
}

package repository

import (
	"context"

	"github.com/aikotoba-ai/recall/pkg/model"
)

// Repository defines the metadata store for memory records. It is purely
// relational-role: it never touches the vector index. Coupling the two sides
// of a memory is orchestrated by the memory usecase.
type Repository interface {
	// PutMemory validates and saves a memory record in provisional state,
	// assigning ID and creation time when unset
	PutMemory(ctx context.Context, memory *model.Memory) error

	// CommitMemory marks a provisional memory as committed, making it live
	CommitMemory(ctx context.Context, id model.MemoryID) error

	// GetMemory retrieves a memory by ID
	GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error)

	// ListMemories retrieves committed memories of one (AEI, user) scope,
	// newest first. Provisional rows are never listed.
	ListMemories(ctx context.Context, aeiID model.AEIID, userID model.UserID, limit int) ([]*model.Memory, error)

	// DeleteMemories removes memory rows, returning how many existed
	DeleteMemories(ctx context.Context, ids []model.MemoryID) (int, error)

	// ListQAPairs reads the legacy question/answer store. Read-only: the
	// legacy store is kept as an audit trail and never mutated.
	ListQAPairs(ctx context.Context, aeiID model.AEIID, limit int) ([]*model.QAPair, error)

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error
}

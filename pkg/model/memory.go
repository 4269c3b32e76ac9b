package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

type AEIID string
type UserID string
type SessionID string

type MemoryType string

const (
	MemoryTypeFact         MemoryType = "fact"
	MemoryTypePreference   MemoryType = "preference"
	MemoryTypeEvent        MemoryType = "event"
	MemoryTypeRelationship MemoryType = "relationship"
	MemoryTypeOther        MemoryType = "other"
)

// Validate checks if the memory type is one of the known set
func (t MemoryType) Validate() error {
	switch t {
	case MemoryTypeFact, MemoryTypePreference, MemoryTypeEvent, MemoryTypeRelationship, MemoryTypeOther:
		return nil
	default:
		return goerr.Wrap(ErrInvalidMemory, "unknown memory type", goerr.V("type", t))
	}
}

// Memory is a durable fact about one (AEI, user) pair. The Firestore document is
// the source of truth; the embedding vector lives in the vector index under the
// same ID. A memory is live only when both sides exist and Committed is true.
type Memory struct {
	ID             MemoryID
	AEIID          AEIID
	UserID         UserID
	SessionID      SessionID // empty for hand-seeded memories
	Content        string
	Type           MemoryType
	Importance     float64
	EmbeddingModel string
	Committed      bool
	CreatedAt      time.Time

	// SimilarityScore is attached at retrieval time only, never persisted
	SimilarityScore float64 `firestore:"-"`
}

// Validate checks schema constraints before the memory is persisted
func (m *Memory) Validate() error {
	if m.AEIID == "" || m.UserID == "" {
		return goerr.Wrap(ErrInvalidMemory, "memory owner scope is not set",
			goerr.V("aei_id", m.AEIID), goerr.V("user_id", m.UserID))
	}
	if m.Content == "" {
		return goerr.Wrap(ErrInvalidMemory, "memory content is empty")
	}
	if m.Importance < 0 || m.Importance > 1 {
		return goerr.Wrap(ErrInvalidMemory, "importance score out of range",
			goerr.V("importance", m.Importance))
	}
	return m.Type.Validate()
}

// CandidateFact is a fact statement extracted from conversation, not yet persisted
type CandidateFact struct {
	Type       MemoryType `json:"type"`
	Content    string     `json:"content"`
	Importance float64    `json:"importance"`
}

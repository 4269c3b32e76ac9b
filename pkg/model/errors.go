package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrBackendUnavailable indicates the embedding or extraction backend is
	// unreachable or timed out. Callers must not fall back to another provider.
	ErrBackendUnavailable = goerr.New("llm backend unavailable")

	// ErrIndexUnavailable indicates the vector index is unreachable. A failed
	// query does not imply an empty result.
	ErrIndexUnavailable = goerr.New("vector index unavailable")

	// ErrMalformedExtraction indicates the extraction backend returned output
	// with no recoverable fact list. Degrades to zero facts, logged only.
	ErrMalformedExtraction = goerr.New("malformed extraction output")

	// ErrInvalidMemory indicates a schema violation on a memory record
	ErrInvalidMemory = goerr.New("invalid memory record")

	// ErrMemoryNotFound indicates a lookup miss
	ErrMemoryNotFound = goerr.New("memory not found")

	// ErrOrphanedRecord indicates the relational row and vector point have
	// diverged. A repair condition, not a normal error.
	ErrOrphanedRecord = goerr.New("orphaned memory record")
)

package migrate_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/aikotoba-ai/recall/pkg/adapter"
	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/service/embedding"
	"github.com/aikotoba-ai/recall/pkg/usecase/extract"
	"github.com/aikotoba-ai/recall/pkg/usecase/memory"
	"github.com/aikotoba-ai/recall/pkg/usecase/migrate"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type fakeArchive struct {
	stats    map[model.AEIID]*model.AEIStats
	sessions map[model.AEIID][]*model.Session
	messages map[model.SessionID][]*model.Message
}

func (a *fakeArchive) ListAEIStats(ctx context.Context, minMessages int) ([]*model.AEIStats, error) {
	var out []*model.AEIStats
	for _, st := range a.stats {
		if st.MessageCount >= minMessages {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageCount > out[j].MessageCount })
	return out, nil
}

func (a *fakeArchive) GetAEIStats(ctx context.Context, aeiID model.AEIID) (*model.AEIStats, error) {
	st, ok := a.stats[aeiID]
	if !ok {
		return nil, errors.New("unknown AEI")
	}
	return st, nil
}

func (a *fakeArchive) ListSessions(ctx context.Context, aeiID model.AEIID) ([]*model.Session, error) {
	return a.sessions[aeiID], nil
}

func (a *fakeArchive) GetSessionMessages(ctx context.Context, sessionID model.SessionID) ([]*model.Message, error) {
	return a.messages[sessionID], nil
}

// archiveWith builds a one-session archive holding n alternating messages.
func archiveWith(aeiID model.AEIID, userID model.UserID, n int) *fakeArchive {
	sessionID := model.SessionID(string(aeiID) + "-s1")
	msgs := make([]*model.Message, 0, n)
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAEI
		}
		msgs = append(msgs, &model.Message{
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: time.Date(2025, 6, 1, 0, i, 0, 0, time.UTC),
		})
	}

	return &fakeArchive{
		stats: map[model.AEIID]*model.AEIStats{
			aeiID: {AEIID: aeiID, UserID: userID, MessageCount: n},
		},
		sessions: map[model.AEIID][]*model.Session{
			aeiID: {{ID: sessionID, AEIID: aeiID, UserID: userID, MessageCount: n}},
		},
		messages: map[model.SessionID][]*model.Message{
			sessionID: msgs,
		},
	}
}

type countingBackend struct {
	calls  int
	failOn int
}

func (b *countingBackend) Extract(ctx context.Context, prompt string) (string, error) {
	b.calls++
	if b.failOn > 0 && b.calls == b.failOn {
		return "", errors.New("backend exploded")
	}
	return fmt.Sprintf(`[{"type":"fact","content":"Extracted fact %d.","importance":0.5}]`, b.calls), nil
}

type stubGemini struct{}

func (stubGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, errors.New("not implemented")
}

func (stubGemini) Embedding(ctx context.Context, text, embeddingModel string, dimensions int) ([]float32, error) {
	vec := make([]float32, dimensions)
	vec[0] = 1
	return vec, nil
}

type stubRepo struct {
	memories map[model.MemoryID]*model.Memory
}

func (r *stubRepo) PutMemory(ctx context.Context, mem *model.Memory) error {
	if mem.ID == "" {
		mem.ID = model.NewMemoryID()
	}
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}
	clone := *mem
	r.memories[mem.ID] = &clone
	return nil
}

func (r *stubRepo) CommitMemory(ctx context.Context, id model.MemoryID) error {
	mem, ok := r.memories[id]
	if !ok {
		return model.ErrMemoryNotFound
	}
	mem.Committed = true
	return nil
}

func (r *stubRepo) GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	mem, ok := r.memories[id]
	if !ok {
		return nil, model.ErrMemoryNotFound
	}
	return mem, nil
}

func (r *stubRepo) ListMemories(ctx context.Context, aeiID model.AEIID, userID model.UserID, limit int) ([]*model.Memory, error) {
	var out []*model.Memory
	for _, mem := range r.memories {
		if mem.AEIID == aeiID && mem.UserID == userID {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (r *stubRepo) DeleteMemories(ctx context.Context, ids []model.MemoryID) (int, error) {
	removed := 0
	for _, id := range ids {
		if _, ok := r.memories[id]; ok {
			delete(r.memories, id)
			removed++
		}
	}
	return removed, nil
}

func (r *stubRepo) ListQAPairs(ctx context.Context, aeiID model.AEIID, limit int) ([]*model.QAPair, error) {
	return nil, nil
}

func (r *stubRepo) Ping(ctx context.Context) error { return nil }

type stubIndex struct {
	points map[string]map[model.MemoryID][]float32
}

func (x *stubIndex) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	if _, ok := x.points[collection]; !ok {
		x.points[collection] = map[model.MemoryID][]float32{}
	}
	return nil
}

func (x *stubIndex) Upsert(ctx context.Context, collection string, id model.MemoryID, vector []float32, payload map[string]any) error {
	x.points[collection][id] = vector
	return nil
}

func (x *stubIndex) Search(ctx context.Context, collection string, vector []float32, limit int) ([]adapter.VectorHit, error) {
	return nil, nil
}

func (x *stubIndex) Delete(ctx context.Context, collection string, ids []model.MemoryID) error {
	return nil
}

func (x *stubIndex) HealthCheck(ctx context.Context) error { return nil }

type harness struct {
	migrator *migrate.Migrator
	backend  *countingBackend
	repo     *stubRepo
}

func newHarness(archive *fakeArchive) *harness {
	cfg := model.DefaultEngineConfig()
	cfg.BatchInterval = 0

	backend := &countingBackend{}
	repo := &stubRepo{memories: map[model.MemoryID]*model.Memory{}}
	index := &stubIndex{points: map[string]map[model.MemoryID][]float32{}}
	router := embedding.NewRouter(stubGemini{}, &cfg)

	uc := memory.New(repo, index, router, &cfg, memory.WithOutput(io.Discard))
	extractor := extract.New(backend, &cfg)
	migrator := migrate.New(archive, extractor, uc, &cfg, migrate.WithOutput(io.Discard))

	return &harness{migrator: migrator, backend: backend, repo: repo}
}

func TestMigrateAEIPartitionsSessions(t *testing.T) {
	// 35 messages with batch size 10: three full batches plus a tail of 5.
	h := newHarness(archiveWith("aei1", "user1", 35))

	res, err := h.migrator.MigrateAEI(context.Background(), "aei1")
	gt.NoError(t, err)
	gt.Equal(t, res.AEIs, 1)
	gt.Equal(t, res.Sessions, 1)
	gt.Equal(t, res.Batches, 4)
	gt.Equal(t, res.SkippedBatches, 0)
	gt.Equal(t, res.FailedBatches, 0)
	gt.Equal(t, res.Memories, 4)
	gt.Equal(t, h.backend.calls, 4)
	gt.Equal(t, len(h.repo.memories), 4)
}

func TestMigrateSkipsUndersizedTailBatch(t *testing.T) {
	// 32 messages: tail batch of 2 is below the extraction minimum.
	h := newHarness(archiveWith("aei1", "user1", 32))

	res, err := h.migrator.MigrateAEI(context.Background(), "aei1")
	gt.NoError(t, err)
	gt.Equal(t, res.Batches, 3)
	gt.Equal(t, res.SkippedBatches, 1)
	gt.Equal(t, h.backend.calls, 3)
}

func TestMigrateSkipsAEIBelowThreshold(t *testing.T) {
	h := newHarness(archiveWith("aei1", "user1", 10))

	res, err := h.migrator.MigrateAEI(context.Background(), "aei1")
	gt.NoError(t, err)
	gt.Equal(t, res.AEIs, 0)
	gt.Equal(t, res.Batches, 0)
	gt.Equal(t, h.backend.calls, 0)
}

func TestMigrateBatchFailureIsNotFatal(t *testing.T) {
	h := newHarness(archiveWith("aei1", "user1", 35))
	h.backend.failOn = 2

	res, err := h.migrator.MigrateAEI(context.Background(), "aei1")
	gt.NoError(t, err)
	gt.Equal(t, res.Batches, 4)
	gt.Equal(t, res.FailedBatches, 1)
	gt.Equal(t, res.Memories, 3)
}

func TestMigrateIsNotIdempotent(t *testing.T) {
	h := newHarness(archiveWith("aei1", "user1", 30))

	first, err := h.migrator.MigrateAEI(context.Background(), "aei1")
	gt.NoError(t, err)
	second, err := h.migrator.MigrateAEI(context.Background(), "aei1")
	gt.NoError(t, err)

	// Re-running duplicates the facts; deduplication is a curation concern.
	gt.Equal(t, len(h.repo.memories), first.Memories+second.Memories)
}

func TestMigrateHonorsCancellation(t *testing.T) {
	h := newHarness(archiveWith("aei1", "user1", 35))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.migrator.MigrateAEI(ctx, "aei1")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, context.Canceled))
	gt.Equal(t, len(h.repo.memories), 0)
}

func TestMigrateAllOrdersByHistorySize(t *testing.T) {
	big := archiveWith("aei-big", "user1", 40)
	small := archiveWith("aei-small", "user2", 30)

	merged := &fakeArchive{
		stats:    map[model.AEIID]*model.AEIStats{},
		sessions: map[model.AEIID][]*model.Session{},
		messages: map[model.SessionID][]*model.Message{},
	}
	for _, a := range []*fakeArchive{big, small} {
		for k, v := range a.stats {
			merged.stats[k] = v
		}
		for k, v := range a.sessions {
			merged.sessions[k] = v
		}
		for k, v := range a.messages {
			merged.messages[k] = v
		}
	}

	h := newHarness(merged)

	res, err := h.migrator.MigrateAll(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, res.AEIs, 2)
	gt.Equal(t, res.Sessions, 2)
	gt.Equal(t, res.Memories, 7)
}
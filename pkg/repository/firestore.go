package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	memoryCollection = "memories"
	qaPairCollection = "qa_pairs"
)

// Firestore implements Repository using Firestore
type Firestore struct {
	client *firestore.Client
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

func (r *Firestore) PutMemory(ctx context.Context, memory *model.Memory) error {
	if memory.ID == "" {
		memory.ID = model.NewMemoryID()
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}

	if err := memory.Validate(); err != nil {
		return err
	}

	doc := r.client.Collection(memoryCollection).Doc(string(memory.ID))
	if _, err := doc.Set(ctx, memory); err != nil {
		return goerr.Wrap(err, "failed to put memory", goerr.V("memory_id", memory.ID))
	}

	return nil
}

func (r *Firestore) CommitMemory(ctx context.Context, id model.MemoryID) error {
	doc := r.client.Collection(memoryCollection).Doc(string(id))
	_, err := doc.Update(ctx, []firestore.Update{
		{Path: "Committed", Value: true},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrMemoryNotFound, "cannot commit missing memory", goerr.V("memory_id", id))
		}
		return goerr.Wrap(err, "failed to commit memory", goerr.V("memory_id", id))
	}
	return nil
}

func (r *Firestore) GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	snapshot, err := r.client.Collection(memoryCollection).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrMemoryNotFound, "memory does not exist", goerr.V("memory_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V("memory_id", id))
	}

	var memory model.Memory
	if err := snapshot.DataTo(&memory); err != nil {
		return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("memory_id", id))
	}

	return &memory, nil
}

func (r *Firestore) ListMemories(ctx context.Context, aeiID model.AEIID, userID model.UserID, limit int) ([]*model.Memory, error) {
	query := r.client.Collection(memoryCollection).
		Where("AEIID", "==", string(aeiID)).
		Where("UserID", "==", string(userID)).
		Where("Committed", "==", true).
		OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var memories []*model.Memory
	for {
		snapshot, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories", goerr.V("aei_id", aeiID))
		}

		var memory model.Memory
		if err := snapshot.DataTo(&memory); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("doc", snapshot.Ref.ID))
		}
		memories = append(memories, &memory)
	}

	return memories, nil
}

func (r *Firestore) DeleteMemories(ctx context.Context, ids []model.MemoryID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.client.Collection(memoryCollection).Doc(string(id))
	}

	snapshots, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to look up memories for deletion")
	}

	deleted := 0
	bw := r.client.BulkWriter(ctx)
	for _, snapshot := range snapshots {
		if !snapshot.Exists() {
			continue
		}
		if _, err := bw.Delete(snapshot.Ref); err != nil {
			return deleted, goerr.Wrap(err, "failed to schedule memory deletion", goerr.V("doc", snapshot.Ref.ID))
		}
		deleted++
	}
	bw.End()

	return deleted, nil
}

func (r *Firestore) ListQAPairs(ctx context.Context, aeiID model.AEIID, limit int) ([]*model.QAPair, error) {
	query := r.client.Collection(qaPairCollection).
		Where("AEIID", "==", string(aeiID)).
		OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var pairs []*model.QAPair
	for {
		snapshot, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate qa pairs", goerr.V("aei_id", aeiID))
		}

		var pair model.QAPair
		if err := snapshot.DataTo(&pair); err != nil {
			return nil, goerr.Wrap(err, "failed to decode qa pair", goerr.V("doc", snapshot.Ref.ID))
		}
		pairs = append(pairs, &pair)
	}

	return pairs, nil
}

func (r *Firestore) Ping(ctx context.Context) error {
	iter := r.client.Collection(memoryCollection).Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return goerr.Wrap(err, "repository is not reachable")
	}
	return nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

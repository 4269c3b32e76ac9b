package migrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aikotoba-ai/recall/pkg/adapter"
	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/usecase/extract"
	"github.com/aikotoba-ai/recall/pkg/usecase/memory"
	"github.com/aikotoba-ai/recall/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Migrator replays archived chat history through fact extraction and
// into the memory engine. It reads the archive, never writes it, and is
// not idempotent: re-running over the same history stores the extracted
// facts again.
type Migrator struct {
	archive   adapter.ChatArchive
	extractor *extract.Extractor
	memories  *memory.UseCase
	cfg       *model.EngineConfig
	output    io.Writer
}

// Option is a functional option for Migrator
type Option func(*Migrator)

// WithOutput sets the output writer
func WithOutput(w io.Writer) Option {
	return func(m *Migrator) {
		m.output = w
	}
}

func New(
	archive adapter.ChatArchive,
	extractor *extract.Extractor,
	memories *memory.UseCase,
	cfg *model.EngineConfig,
	opts ...Option,
) *Migrator {
	m := &Migrator{
		archive:   archive,
		extractor: extractor,
		memories:  memories,
		cfg:       cfg,
		output:    os.Stdout,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Result counts what one migration run processed.
type Result struct {
	AEIs           int
	Sessions       int
	Batches        int
	SkippedBatches int
	FailedBatches  int
	Memories       int
}

func (r *Result) add(other *Result) {
	r.AEIs += other.AEIs
	r.Sessions += other.Sessions
	r.Batches += other.Batches
	r.SkippedBatches += other.SkippedBatches
	r.FailedBatches += other.FailedBatches
	r.Memories += other.Memories
}

// MigrateAll migrates every AEI with enough archived history, largest
// history first so the most active companions get their memories soonest.
func (m *Migrator) MigrateAll(ctx context.Context) (*Result, error) {
	stats, err := m.archive.ListAEIStats(ctx, m.cfg.MinMigrationMessages)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list AEI stats")
	}

	total := &Result{}
	for _, st := range stats {
		res, err := m.migrateSessions(ctx, st.AEIID, st.UserID)
		total.add(res)
		if err != nil {
			return total, err
		}
		total.AEIs++
	}

	fmt.Fprintf(m.output, "Migrated %d AEIs: %d sessions, %d batches (%d skipped, %d failed), %d memories\n",
		total.AEIs, total.Sessions, total.Batches, total.SkippedBatches, total.FailedBatches, total.Memories)
	return total, nil
}

// MigrateAEI migrates a single AEI. AEIs below the history threshold are
// skipped without touching the extraction backend.
func (m *Migrator) MigrateAEI(ctx context.Context, aeiID model.AEIID) (*Result, error) {
	stats, err := m.archive.GetAEIStats(ctx, aeiID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get AEI stats", goerr.V("aei_id", aeiID))
	}

	if stats.MessageCount < m.cfg.MinMigrationMessages {
		logging.From(ctx).Info("skipping AEI below history threshold",
			"aei_id", aeiID,
			"messages", stats.MessageCount,
			"min", m.cfg.MinMigrationMessages,
		)
		fmt.Fprintf(m.output, "Skipped %s: only %d archived messages\n", aeiID, stats.MessageCount)
		return &Result{}, nil
	}

	res, err := m.migrateSessions(ctx, aeiID, stats.UserID)
	if err != nil {
		return res, err
	}
	res.AEIs = 1

	fmt.Fprintf(m.output, "Migrated %s: %d sessions, %d batches (%d skipped, %d failed), %d memories\n",
		aeiID, res.Sessions, res.Batches, res.SkippedBatches, res.FailedBatches, res.Memories)
	return res, nil
}

func (m *Migrator) migrateSessions(ctx context.Context, aeiID model.AEIID, userID model.UserID) (*Result, error) {
	logger := logging.From(ctx)
	res := &Result{}

	sessions, err := m.archive.ListSessions(ctx, aeiID)
	if err != nil {
		return res, goerr.Wrap(err, "failed to list sessions", goerr.V("aei_id", aeiID))
	}

	for _, session := range sessions {
		msgs, err := m.archive.GetSessionMessages(ctx, session.ID)
		if err != nil {
			return res, goerr.Wrap(err, "failed to read session messages", goerr.V("session_id", session.ID))
		}
		res.Sessions++

		for _, batch := range partition(msgs, m.cfg.BatchSize) {
			// Cancellation lands between batches so no batch is half stored.
			if err := ctx.Err(); err != nil {
				return res, goerr.Wrap(err, "migration canceled")
			}

			if len(batch) < m.cfg.MinBatchSize {
				res.SkippedBatches++
				continue
			}
			res.Batches++

			stored, err := m.migrateBatch(ctx, aeiID, userID, session.ID, batch)
			res.Memories += stored
			if err != nil {
				// One bad batch must not abort hours of migration work.
				logger.Warn("batch migration failed",
					"error", err,
					"aei_id", aeiID,
					"session_id", session.ID,
				)
				res.FailedBatches++
			}

			if err := m.throttle(ctx); err != nil {
				return res, err
			}
		}
	}

	return res, nil
}

func (m *Migrator) migrateBatch(ctx context.Context, aeiID model.AEIID, userID model.UserID, sessionID model.SessionID, batch []model.Message) (int, error) {
	facts, err := m.extractor.Extract(ctx, batch)
	if err != nil {
		return 0, goerr.Wrap(err, "fact extraction failed")
	}
	if len(facts) == 0 {
		return 0, nil
	}

	// Archived history was already validated by real usage, so migrated
	// facts get the high fidelity embedding treatment.
	stored, err := m.memories.WriteFacts(ctx, aeiID, userID, sessionID, facts, true)
	if err != nil {
		return len(stored), goerr.Wrap(err, "failed to store extracted facts")
	}
	return len(stored), nil
}

// throttle paces backend calls between batches.
func (m *Migrator) throttle(ctx context.Context) error {
	if m.cfg.BatchInterval <= 0 {
		return nil
	}

	timer := time.NewTimer(m.cfg.BatchInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "migration canceled")
	case <-timer.C:
		return nil
	}
}

func partition(msgs []*model.Message, size int) [][]model.Message {
	if size <= 0 || len(msgs) == 0 {
		return nil
	}

	batches := make([][]model.Message, 0, (len(msgs)+size-1)/size)
	for start := 0; start < len(msgs); start += size {
		end := start + size
		if end > len(msgs) {
			end = len(msgs)
		}
		batch := make([]model.Message, 0, end-start)
		for _, msg := range msgs[start:end] {
			batch = append(batch, *msg)
		}
		batches = append(batches, batch)
	}
	return batches
}

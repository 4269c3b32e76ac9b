package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// ChatArchive reads historical conversation from the product's BigQuery
// transcript warehouse. Migration replays it through fact extraction; nothing
// here ever writes.
type ChatArchive interface {
	// ListAEIStats returns per-AEI message counts for AEIs at or above
	// minMessages, ordered by descending count
	ListAEIStats(ctx context.Context, minMessages int) ([]*model.AEIStats, error)

	// GetAEIStats returns the message count for a single AEI
	GetAEIStats(ctx context.Context, aeiID model.AEIID) (*model.AEIStats, error)

	// ListSessions returns the sessions of one AEI in chronological order
	ListSessions(ctx context.Context, aeiID model.AEIID) ([]*model.Session, error)

	// GetSessionMessages returns the messages of one session in
	// chronological order
	GetSessionMessages(ctx context.Context, sessionID model.SessionID) ([]*model.Message, error)
}

type bigqueryArchive struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewChatArchive creates a BigQuery-backed chat archive reader.
// The table is expected to hold one row per message with columns
// aei_id, user_id, session_id, role, content, created_at.
func NewChatArchive(ctx context.Context, projectID, dataset, table string) (ChatArchive, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	return &bigqueryArchive{
		client:  client,
		dataset: dataset,
		table:   table,
	}, nil
}

func (a *bigqueryArchive) tableRef() string {
	return "`" + a.client.Project() + "." + a.dataset + "." + a.table + "`"
}

type aeiStatsRow struct {
	AEIID        string `bigquery:"aei_id"`
	UserID       string `bigquery:"user_id"`
	MessageCount int64  `bigquery:"message_count"`
}

func (a *bigqueryArchive) ListAEIStats(ctx context.Context, minMessages int) ([]*model.AEIStats, error) {
	q := a.client.Query(`
		SELECT aei_id, ANY_VALUE(user_id) AS user_id, COUNT(*) AS message_count
		FROM ` + a.tableRef() + `
		GROUP BY aei_id
		HAVING message_count >= @min_messages
		ORDER BY message_count DESC`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "min_messages", Value: int64(minMessages)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query AEI stats")
	}

	var stats []*model.AEIStats
	for {
		var row aeiStatsRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate AEI stats")
		}
		stats = append(stats, &model.AEIStats{
			AEIID:        model.AEIID(row.AEIID),
			UserID:       model.UserID(row.UserID),
			MessageCount: int(row.MessageCount),
		})
	}

	return stats, nil
}

func (a *bigqueryArchive) GetAEIStats(ctx context.Context, aeiID model.AEIID) (*model.AEIStats, error) {
	q := a.client.Query(`
		SELECT aei_id, ANY_VALUE(user_id) AS user_id, COUNT(*) AS message_count
		FROM ` + a.tableRef() + `
		WHERE aei_id = @aei_id
		GROUP BY aei_id`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "aei_id", Value: string(aeiID)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query AEI stats", goerr.V("aei_id", aeiID))
	}

	var row aeiStatsRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, goerr.New("AEI has no chat history", goerr.V("aei_id", aeiID))
		}
		return nil, goerr.Wrap(err, "failed to read AEI stats", goerr.V("aei_id", aeiID))
	}

	return &model.AEIStats{
		AEIID:        model.AEIID(row.AEIID),
		UserID:       model.UserID(row.UserID),
		MessageCount: int(row.MessageCount),
	}, nil
}

type sessionRow struct {
	SessionID    string    `bigquery:"session_id"`
	AEIID        string    `bigquery:"aei_id"`
	UserID       string    `bigquery:"user_id"`
	StartedAt    time.Time `bigquery:"started_at"`
	MessageCount int64     `bigquery:"message_count"`
}

func (a *bigqueryArchive) ListSessions(ctx context.Context, aeiID model.AEIID) ([]*model.Session, error) {
	q := a.client.Query(`
		SELECT session_id, ANY_VALUE(aei_id) AS aei_id, ANY_VALUE(user_id) AS user_id,
			MIN(created_at) AS started_at, COUNT(*) AS message_count
		FROM ` + a.tableRef() + `
		WHERE aei_id = @aei_id
		GROUP BY session_id
		ORDER BY started_at ASC`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "aei_id", Value: string(aeiID)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query sessions", goerr.V("aei_id", aeiID))
	}

	var sessions []*model.Session
	for {
		var row sessionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate sessions", goerr.V("aei_id", aeiID))
		}
		sessions = append(sessions, &model.Session{
			ID:           model.SessionID(row.SessionID),
			AEIID:        model.AEIID(row.AEIID),
			UserID:       model.UserID(row.UserID),
			StartedAt:    row.StartedAt,
			MessageCount: int(row.MessageCount),
		})
	}

	return sessions, nil
}

type messageRow struct {
	Role      string    `bigquery:"role"`
	Content   string    `bigquery:"content"`
	CreatedAt time.Time `bigquery:"created_at"`
}

func (a *bigqueryArchive) GetSessionMessages(ctx context.Context, sessionID model.SessionID) ([]*model.Message, error) {
	q := a.client.Query(`
		SELECT role, content, created_at
		FROM ` + a.tableRef() + `
		WHERE session_id = @session_id
		ORDER BY created_at ASC`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "session_id", Value: string(sessionID)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query messages", goerr.V("session_id", sessionID))
	}

	var messages []*model.Message
	for {
		var row messageRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate messages", goerr.V("session_id", sessionID))
		}
		messages = append(messages, &model.Message{
			Role:      model.MessageRole(row.Role),
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		})
	}

	return messages, nil
}

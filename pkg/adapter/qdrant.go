package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// VectorHit is one search result from the vector index, ordered by
// descending similarity
type VectorHit struct {
	ID         model.MemoryID
	Similarity float64
}

// VectorIndex is the nearest-neighbor index holding one point per live
// memory, keyed by memory ID, namespaced per AEI collection
type VectorIndex interface {
	EnsureCollection(ctx context.Context, collection string, dimensions int) error
	Upsert(ctx context.Context, collection string, id model.MemoryID, vector []float32, payload map[string]any) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]VectorHit, error)
	Delete(ctx context.Context, collection string, ids []model.MemoryID) error
	HealthCheck(ctx context.Context) error
}

type qdrantClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type QdrantOption func(*qdrantClient)

func WithQdrantAPIKey(apiKey string) QdrantOption {
	return func(q *qdrantClient) {
		q.apiKey = apiKey
	}
}

func WithQdrantHTTPClient(client *http.Client) QdrantOption {
	return func(q *qdrantClient) {
		q.client = client
	}
}

// NewQdrant creates a Qdrant-backed VectorIndex client
func NewQdrant(baseURL string, opts ...QdrantOption) (VectorIndex, error) {
	if baseURL == "" {
		return nil, goerr.New("qdrant base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, goerr.Wrap(err, "invalid qdrant base URL", goerr.V("url", baseURL))
	}

	q := &qdrantClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// qdrantStatus accepts both `"status": "ok"` and `"status": {"error": "..."}`
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Result T            `json:"result"`
}

type qdrantPoint struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func (q *qdrantClient) do(ctx context.Context, method, path string, body, result any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, goerr.Wrap(err, "failed to marshal qdrant request")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reqBody)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create qdrant request")
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, goerr.Wrap(model.ErrIndexUnavailable, err.Error(),
			goerr.V("method", method), goerr.V("path", path))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, goerr.Wrap(model.ErrIndexUnavailable, "failed to read qdrant response")
	}

	if result != nil && len(data) > 0 {
		// best-effort: error details are surfaced from the envelope below
		_ = json.Unmarshal(data, result)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env qdrantEnvelope[json.RawMessage]
		_ = json.Unmarshal(data, &env)

		detail := env.Status.Error
		if detail == "" {
			detail = strings.TrimSpace(string(data))
		}
		if resp.StatusCode >= 500 {
			return resp.StatusCode, goerr.Wrap(model.ErrIndexUnavailable, "qdrant server error",
				goerr.V("status", resp.StatusCode), goerr.V("detail", detail))
		}
		return resp.StatusCode, goerr.New("qdrant error",
			goerr.V("status", resp.StatusCode), goerr.V("detail", detail))
	}

	return resp.StatusCode, nil
}

// EnsureCollection creates the collection if missing. Creating an existing
// collection is treated as success.
func (q *qdrantClient) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}

	status, err := q.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(collection), body, nil)
	if err != nil {
		if status == http.StatusConflict || strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil
		}
		return goerr.Wrap(err, "failed to create collection", goerr.V("collection", collection))
	}
	return nil
}

func (q *qdrantClient) Upsert(ctx context.Context, collection string, id model.MemoryID, vector []float32, payload map[string]any) error {
	body := map[string]any{
		"points": []map[string]any{{
			"id":      string(id),
			"vector":  vector,
			"payload": payload,
		}},
	}

	if _, err := q.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(collection)+"/points?wait=true", body, nil); err != nil {
		return goerr.Wrap(err, "failed to upsert point",
			goerr.V("collection", collection), goerr.V("memory_id", id))
	}
	return nil
}

// Search returns up to limit points ordered by descending similarity. A
// collection that was never created yields an empty result; any other failure
// is an error, never an empty result.
func (q *qdrantClient) Search(ctx context.Context, collection string, vector []float32, limit int) ([]VectorHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": false,
		"with_vector":  false,
	}

	var env qdrantEnvelope[[]qdrantPoint]
	status, err := q.do(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection)+"/points/search", body, &env)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to search points", goerr.V("collection", collection))
	}

	hits := make([]VectorHit, 0, len(env.Result))
	for _, p := range env.Result {
		hits = append(hits, VectorHit{
			ID:         model.MemoryID(p.ID),
			Similarity: p.Score,
		})
	}
	return hits, nil
}

func (q *qdrantClient) Delete(ctx context.Context, collection string, ids []model.MemoryID) error {
	if len(ids) == 0 {
		return nil
	}

	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = string(id)
	}

	body := map[string]any{"points": points}
	if _, err := q.do(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection)+"/points/delete?wait=true", body, nil); err != nil {
		return goerr.Wrap(err, "failed to delete points", goerr.V("collection", collection))
	}
	return nil
}

func (q *qdrantClient) HealthCheck(ctx context.Context) error {
	status, err := q.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return goerr.Wrap(err, "qdrant health check failed", goerr.V("status", status))
	}
	return nil
}

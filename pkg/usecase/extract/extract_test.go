package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/usecase/extract"
	"github.com/m-mizutani/gt"
)

type mockBackend struct {
	response string
	err      error
	prompts  []string
}

func (m *mockBackend) Extract(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

type memStorage struct {
	archived map[string][]byte
}

func (s *memStorage) Archive(ctx context.Context, key string, data []byte) error {
	if s.archived == nil {
		s.archived = map[string][]byte{}
	}
	s.archived[key] = data
	return nil
}

func (s *memStorage) Fetch(ctx context.Context, key string) ([]byte, error) {
	return s.archived[key], nil
}

func testCfg() *model.EngineConfig {
	cfg := model.DefaultEngineConfig()
	return &cfg
}

func makeMessages(n int) []model.Message {
	msgs := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		role := model.RoleUser
		content := "I went hiking near Mt. Takao last weekend."
		if i%2 == 1 {
			role = model.RoleAEI
			content = "That sounds lovely! How was the weather?"
		}
		msgs = append(msgs, model.Message{Role: role, Content: content})
	}
	return msgs
}

func TestExtractSkipsUndersizedBatch(t *testing.T) {
	backend := &mockBackend{response: "[]"}
	x := extract.New(backend, testCfg())

	facts, err := x.Extract(context.Background(), makeMessages(2))
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 0)
	gt.Equal(t, len(backend.prompts), 0)
}

func TestExtractMinimumBatchReachesBackend(t *testing.T) {
	backend := &mockBackend{
		response: `[{"type":"event","content":"The user went hiking near Mt. Takao.","importance":0.6}]`,
	}
	x := extract.New(backend, testCfg())

	facts, err := x.Extract(context.Background(), makeMessages(3))
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 1)
	gt.Equal(t, facts[0].Type, model.MemoryTypeEvent)

	gt.Equal(t, len(backend.prompts), 1)
	gt.S(t, backend.prompts[0]).Contains("[user] I went hiking near Mt. Takao last weekend.")
	gt.S(t, backend.prompts[0]).Contains("[aei] That sounds lovely! How was the weather?")
}

func TestExtractHikingScenario(t *testing.T) {
	backend := &mockBackend{
		response: `[
			{"type":"preference","content":"The user loves hiking.","importance":0.6},
			{"type":"fact","content":"The user works as an engineer.","importance":0.8}
		]`,
	}
	x := extract.New(backend, testCfg())

	msgs := []model.Message{
		{Role: model.RoleUser, Content: "I love hiking and work as an engineer"},
		{Role: model.RoleAEI, Content: "That's great!"},
		{Role: model.RoleUser, Content: "Yes, I try to get out every weekend"},
	}

	facts, err := x.Extract(context.Background(), msgs)
	gt.NoError(t, err)
	gt.True(t, len(facts) >= 1)

	found := false
	for _, f := range facts {
		if f.Type != model.MemoryTypeFact && f.Type != model.MemoryTypePreference {
			continue
		}
		if strings.Contains(f.Content, "hiking") || strings.Contains(f.Content, "engineer") {
			found = true
		}
		gt.True(t, f.Importance >= 0 && f.Importance <= 1)
	}
	gt.True(t, found)
}

func TestExtractSanitizesFacts(t *testing.T) {
	backend := &mockBackend{
		response: `[
			{"type":"hobby","content":"The user collects vinyl records.","importance":0.5},
			{"type":"fact","content":"   ","importance":0.9},
			{"type":"fact","content":"The user is 34 years old.","importance":1.7},
			{"type":"preference","content":"The user dislikes cilantro.","importance":-0.2}
		]`,
	}
	x := extract.New(backend, testCfg())

	facts, err := x.Extract(context.Background(), makeMessages(4))
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 3)

	gt.Equal(t, facts[0].Type, model.MemoryTypeOther)
	gt.Equal(t, facts[1].Importance, 1.0)
	gt.Equal(t, facts[2].Importance, 0.0)
}

func TestExtractCapsFactCount(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 12; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"type":"fact","content":"The user likes thing number ` + strings.Repeat("x", i+1) + `.","importance":0.3}`)
	}
	sb.WriteString("]")

	backend := &mockBackend{response: sb.String()}
	x := extract.New(backend, testCfg())

	facts, err := x.Extract(context.Background(), makeMessages(5))
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 8)
}

func TestExtractBackendFailure(t *testing.T) {
	backend := &mockBackend{err: errors.New("rate limited")}
	x := extract.New(backend, testCfg())

	_, err := x.Extract(context.Background(), makeMessages(3))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrBackendUnavailable))
}

func TestExtractMalformedOutputYieldsZeroFacts(t *testing.T) {
	backend := &mockBackend{response: "Sorry, I cannot produce JSON today."}
	storage := &memStorage{}
	x := extract.New(backend, testCfg(), extract.WithStorage(storage))

	facts, err := x.Extract(context.Background(), makeMessages(3))
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 0)

	gt.Equal(t, len(storage.archived), 1)
	for _, data := range storage.archived {
		gt.S(t, string(data)).Contains("cannot produce JSON")
	}
}

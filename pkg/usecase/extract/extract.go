package extract

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/aikotoba-ai/recall/pkg/adapter"
	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/aikotoba-ai/recall/pkg/utils/logging"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/extract.md
var extractPromptRaw string

var extractPromptTmpl = template.Must(template.New("extract").Parse(extractPromptRaw))

// maxFactsPerBatch limits how many candidate facts a single batch may
// yield, regardless of what the backend returns.
const maxFactsPerBatch = 8

// Backend turns a rendered extraction prompt into raw model output.
// Implementations wrap a specific LLM provider.
type Backend interface {
	Extract(ctx context.Context, prompt string) (string, error)
}

// Extractor derives candidate facts from chat transcript batches.
type Extractor struct {
	backend Backend
	storage adapter.Storage
	cfg     *model.EngineConfig
}

type Option func(*Extractor)

// WithStorage enables archiving of unparseable backend output for later
// inspection.
func WithStorage(st adapter.Storage) Option {
	return func(x *Extractor) {
		x.storage = st
	}
}

func New(backend Backend, cfg *model.EngineConfig, opts ...Option) *Extractor {
	x := &Extractor{
		backend: backend,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract runs fact extraction over one batch of messages. Batches below
// the minimum size are skipped without calling the backend. Output the
// backend produced but that cannot be recovered into valid facts yields
// zero facts, not an error.
func (x *Extractor) Extract(ctx context.Context, msgs []model.Message) ([]model.CandidateFact, error) {
	logger := logging.From(ctx)

	if len(msgs) < x.cfg.MinBatchSize {
		logger.Debug("skipping undersized batch",
			"messages", len(msgs),
			"min", x.cfg.MinBatchSize,
		)
		return nil, nil
	}

	prompt, err := renderPrompt(msgs)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, x.cfg.CallTimeout)
	defer cancel()

	raw, err := x.backend.Extract(callCtx, prompt)
	if err != nil {
		return nil, goerr.Wrap(model.ErrBackendUnavailable, "extraction backend call failed",
			goerr.V("cause", err.Error()),
			goerr.V("messages", len(msgs)),
		)
	}

	facts, err := parseFacts(raw)
	if err != nil {
		logger.Warn("discarding unparseable extraction output", "error", err)
		x.archiveFailure(ctx, raw)
		return nil, nil
	}

	return sanitizeFacts(ctx, facts), nil
}

// archiveFailure stores raw backend output that failed parsing, so the
// prompt or the recovery pipeline can be tuned against real failures.
func (x *Extractor) archiveFailure(ctx context.Context, raw string) {
	if x.storage == nil {
		return
	}

	key := "extract-failures/" + time.Now().UTC().Format("2006-01-02") + "/" + uuid.NewString() + ".txt"
	if err := x.storage.Archive(ctx, key, []byte(raw)); err != nil {
		logging.From(ctx).Warn("failed to archive extraction output", "error", err, "key", key)
		return
	}
	logging.From(ctx).Info("archived unparseable extraction output", "key", key)
}

func renderPrompt(msgs []model.Message) (string, error) {
	var transcript strings.Builder
	for _, msg := range msgs {
		transcript.WriteString("[" + string(msg.Role) + "] ")
		transcript.WriteString(msg.Content)
		transcript.WriteString("\n")
	}

	var buf bytes.Buffer
	if err := extractPromptTmpl.Execute(&buf, map[string]any{
		"MaxFacts":   maxFactsPerBatch,
		"Transcript": transcript.String(),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render extraction prompt")
	}

	return buf.String(), nil
}

// sanitizeFacts normalizes backend output: empty facts are dropped,
// unknown types fall back to "other", importance is clamped into [0, 1],
// and the batch cap is enforced.
func sanitizeFacts(ctx context.Context, facts []model.CandidateFact) []model.CandidateFact {
	out := make([]model.CandidateFact, 0, len(facts))
	for _, f := range facts {
		f.Content = strings.TrimSpace(f.Content)
		if f.Content == "" {
			continue
		}
		if err := f.Type.Validate(); err != nil {
			logging.From(ctx).Debug("unknown fact type, falling back to other", "type", f.Type)
			f.Type = model.MemoryTypeOther
		}
		if f.Importance < 0 {
			f.Importance = 0
		}
		if f.Importance > 1 {
			f.Importance = 1
		}
		out = append(out, f)
		if len(out) >= maxFactsPerBatch {
			break
		}
	}
	return out
}

type geminiBackend struct {
	gemini adapter.Gemini
	config *genai.GenerateContentConfig
}

// NewGeminiBackend builds a Backend that uses Gemini structured output
// constrained by the fact list schema.
func NewGeminiBackend(gemini adapter.Gemini) (Backend, error) {
	schema, err := convertJSONSchemaToGenai(factListSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build fact schema")
	}

	thinkingBudget := int32(0)
	return &geminiBackend{
		gemini: gemini,
		config: &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: false,
				ThinkingBudget:  &thinkingBudget,
			},
		},
	}, nil
}

func (b *geminiBackend) Extract(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := b.gemini.GenerateContent(ctx, contents, b.config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate extraction output")
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", goerr.New("invalid response structure from gemini")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}

const claudeSystemPrompt = "You extract long-term memory facts from chat transcripts. " +
	"Respond with a JSON array only, no prose."

type claudeBackend struct {
	claude adapter.Claude
}

// NewClaudeBackend builds a Backend on the Anthropic API. Claude has no
// schema-constrained output mode, so the parse recovery pipeline does
// more work for this backend.
func NewClaudeBackend(claude adapter.Claude) Backend {
	return &claudeBackend{claude: claude}
}

func (b *claudeBackend) Extract(ctx context.Context, prompt string) (string, error) {
	return b.claude.Complete(ctx, claudeSystemPrompt, prompt)
}

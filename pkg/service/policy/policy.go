package policy

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

// PrunePolicy selects memories for removal via Rego. The policy receives
// the candidate memories of one scope as input and returns the IDs it
// wants pruned under data.prune.drop. No policy files means nothing is
// ever pruned.
type PrunePolicy struct {
	query *rego.PreparedEvalQuery
}

// Load reads all .rego files from policyDir and prepares the prune query
func Load(ctx context.Context, policyDir string) (*PrunePolicy, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}

	if len(files) == 0 {
		return &PrunePolicy{}, nil
	}

	modules := make([]func(*rego.Rego), 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.Value("path", file))
		}
		modules = append(modules, rego.Module(file, string(data)))
	}

	return prepare(ctx, modules)
}

// LoadModule prepares a prune policy from a single in-memory Rego module
func LoadModule(ctx context.Context, name, module string) (*PrunePolicy, error) {
	return prepare(ctx, []func(*rego.Rego){rego.Module(name, module)})
}

func prepare(ctx context.Context, modules []func(*rego.Rego)) (*PrunePolicy, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+1)
	options = append(options, rego.Query("data.prune"))
	options = append(options, modules...)

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare prune query")
	}

	return &PrunePolicy{query: &prepared}, nil
}

// Evaluate returns the IDs the policy wants pruned, in policy order.
// IDs the policy invents that are not in the candidate set are ignored.
func (p *PrunePolicy) Evaluate(ctx context.Context, memories []*model.Memory, now time.Time) ([]model.MemoryID, error) {
	if p.query == nil || len(memories) == 0 {
		return nil, nil
	}

	known := make(map[model.MemoryID]bool, len(memories))
	input := map[string]any{
		"now":      now.UTC().Format(time.RFC3339),
		"memories": make([]any, 0, len(memories)),
	}
	for _, mem := range memories {
		known[mem.ID] = true
		input["memories"] = append(input["memories"].([]any), map[string]any{
			"id":         string(mem.ID),
			"type":       string(mem.Type),
			"importance": mem.Importance,
			"created_at": mem.CreatedAt.UTC().Format(time.RFC3339),
			"age_days":   now.Sub(mem.CreatedAt).Hours() / 24,
		})
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate prune policy")
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("invalid prune policy result")
	}

	dropData, ok := data["drop"]
	if !ok {
		return nil, nil
	}

	drops, ok := dropData.([]any)
	if !ok {
		return nil, goerr.New("invalid prune policy result: drop is not an array")
	}

	ids := make([]model.MemoryID, 0, len(drops))
	for _, d := range drops {
		s, ok := d.(string)
		if !ok {
			continue
		}
		id := model.MemoryID(s)
		if known[id] {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

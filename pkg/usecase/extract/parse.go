package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)

// parseFacts recovers a candidate fact list from raw backend output.
// Models do not always honor output instructions, so the payload may be
// wrapped in markdown fences, embedded in surrounding prose, carry
// trailing commas, or arrive wrapped in a {"facts": [...]} object.
func parseFacts(raw string) ([]model.CandidateFact, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, goerr.Wrap(model.ErrMalformedExtraction, "empty extraction output")
	}

	text = stripFences(text)
	text = carvePayload(text)

	if facts, ok := decodeFacts(text); ok {
		return facts, nil
	}

	// Retry after removing trailing commas, a common LLM malformation.
	repaired := trailingCommaRe.ReplaceAllString(text, "$1")
	if facts, ok := decodeFacts(repaired); ok {
		return facts, nil
	}

	return nil, goerr.Wrap(model.ErrMalformedExtraction, "no valid fact list in extraction output",
		goerr.V("output", truncate(raw, 512)),
	)
}

// stripFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	body := text[3:]
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// carvePayload cuts the outermost JSON value out of surrounding prose.
// Arrays win over objects so a bare fact list inside an explanation is
// picked up directly.
func carvePayload(text string) string {
	for _, pair := range []struct{ open, close string }{
		{"[", "]"},
		{"{", "}"},
	} {
		start := strings.Index(text, pair.open)
		end := strings.LastIndex(text, pair.close)
		if start >= 0 && end > start {
			return text[start : end+1]
		}
	}
	return text
}

func decodeFacts(text string) ([]model.CandidateFact, bool) {
	var facts []model.CandidateFact
	if err := json.Unmarshal([]byte(text), &facts); err == nil {
		return facts, true
	}

	var wrapped struct {
		Facts []model.CandidateFact `json:"facts"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err == nil && wrapped.Facts != nil {
		return wrapped.Facts, true
	}

	return nil, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

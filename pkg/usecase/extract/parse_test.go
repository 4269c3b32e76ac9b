package extract

import (
	"errors"
	"testing"

	"github.com/aikotoba-ai/recall/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestParseFactsBareArray(t *testing.T) {
	raw := `[{"type":"preference","content":"The user enjoys hiking.","importance":0.4}]`

	facts, err := parseFacts(raw)
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 1)
	gt.Equal(t, facts[0].Type, model.MemoryTypePreference)
	gt.Equal(t, facts[0].Content, "The user enjoys hiking.")
	gt.Equal(t, facts[0].Importance, 0.4)
}

func TestParseFactsFencedOutput(t *testing.T) {
	raw := "```json\n[{\"type\":\"fact\",\"content\":\"The user is a software engineer.\",\"importance\":0.8}]\n```"

	facts, err := parseFacts(raw)
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 1)
	gt.Equal(t, facts[0].Type, model.MemoryTypeFact)
}

func TestParseFactsEmbeddedInProse(t *testing.T) {
	raw := `Here are the facts I extracted from the conversation:
[{"type":"event","content":"The user moved to Osaka in March.","importance":0.7}]
Let me know if you need more.`

	facts, err := parseFacts(raw)
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 1)
	gt.Equal(t, facts[0].Content, "The user moved to Osaka in March.")
}

func TestParseFactsTrailingComma(t *testing.T) {
	raw := `[{"type":"fact","content":"The user has a cat.","importance":0.5,},]`

	facts, err := parseFacts(raw)
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 1)
	gt.Equal(t, facts[0].Content, "The user has a cat.")
}

func TestParseFactsWrappedObject(t *testing.T) {
	raw := `{"facts":[{"type":"relationship","content":"The user's sister is named Mei.","importance":0.6}]}`

	facts, err := parseFacts(raw)
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 1)
	gt.Equal(t, facts[0].Type, model.MemoryTypeRelationship)
}

func TestParseFactsEmptyList(t *testing.T) {
	facts, err := parseFacts("[]")
	gt.NoError(t, err)
	gt.Equal(t, len(facts), 0)
}

func TestParseFactsUnrecoverable(t *testing.T) {
	for _, raw := range []string{
		"",
		"I could not find any facts in this conversation.",
		`[{"type": "fact", "content": `,
	} {
		_, err := parseFacts(raw)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrMalformedExtraction))
	}
}

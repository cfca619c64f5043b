package intelligence

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/alexanderramin/noise/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockGenerator struct {
	response string
	err      error
	last     llm.GenerateRequest
}

func (m *mockGenerator) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return &llm.GenerateResponse{Text: m.response, Model: "gemini-flash-latest"}, nil
}

func TestNarrative_UsesModelComment(t *testing.T) {
	gen := &mockGenerator{response: "  \"Both of you are building bridges out of doubt.\"\n"}
	svc := NewNarrativeService(gen, nil)

	got := svc.Synthesize(context.Background(), "I can't decide", "I hesitated for years")

	assert.False(t, got.Fallback)
	assert.Equal(t, "Both of you are building bridges out of doubt.", got.Text)
	assert.Equal(t, llm.TaskNarrative, gen.last.Task)
	assert.Contains(t, gen.last.UserPrompt, `"I can't decide"`)
	assert.Contains(t, gen.last.UserPrompt, `"I hesitated for years"`)
	assert.Contains(t, gen.last.SystemPrompt, "140 characters")
}

func TestNarrative_FallbackOnError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	svc := NewNarrativeService(&mockGenerator{err: llm.ErrTimeout}, zap.New(core))

	got := svc.Synthesize(context.Background(), "a", "b")

	assert.True(t, got.Fallback)
	assert.Equal(t, FallbackComment, got.Text)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "narrative generation failed", logs.All()[0].Message)
}

func TestNarrative_FallbackOnEmptyText(t *testing.T) {
	svc := NewNarrativeService(&mockGenerator{response: "  \"\" "}, nil)

	got := svc.Synthesize(context.Background(), "a", "b")
	assert.True(t, got.Fallback)
	assert.Equal(t, FallbackComment, got.Text)
}

func TestNarrative_NilClientFallsBack(t *testing.T) {
	got := NewNarrativeService(nil, nil).Synthesize(context.Background(), "a", "b")
	assert.True(t, got.Fallback)
}

func TestNarrative_TruncatesLongComment(t *testing.T) {
	long := strings.Repeat("思", 300)
	svc := NewNarrativeService(&mockGenerator{response: long}, nil)

	got := svc.Synthesize(context.Background(), "a", "b")

	assert.False(t, got.Fallback)
	assert.Equal(t, MaxCommentRunes, utf8.RuneCountInString(got.Text))
	assert.True(t, strings.HasSuffix(got.Text, "…"))
}

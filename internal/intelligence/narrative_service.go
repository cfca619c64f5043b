package intelligence

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alexanderramin/noise/internal/llm"
	"go.uber.org/zap"
)

// FallbackComment is delivered when the model cannot produce a comment.
const FallbackComment = "The lines of thought are crossed... but a stray bit of noise has its own charm."

// MaxCommentRunes bounds a connection comment.
const MaxCommentRunes = 140

// NarrativeService writes the comment that links two messages.
type NarrativeService interface {
	// Synthesize never fails; any model problem yields FallbackComment.
	Synthesize(ctx context.Context, currentText, partnerText string) Narrative
}

// Narrative is a connection comment and whether it came from the fallback.
type Narrative struct {
	Text     string
	Fallback bool
}

type narrativeService struct {
	client llm.Generator
	log    *zap.Logger
}

// NewNarrativeService creates a NarrativeService. A nil client always falls back.
func NewNarrativeService(client llm.Generator, log *zap.Logger) NarrativeService {
	if log == nil {
		log = zap.NewNop()
	}
	return &narrativeService{client: client, log: log}
}

func (s *narrativeService) Synthesize(ctx context.Context, currentText, partnerText string) Narrative {
	if s.client == nil {
		return Narrative{Text: FallbackComment, Fallback: true}
	}

	resp, err := s.client.Generate(ctx, llm.GenerateRequest{
		Task:         llm.TaskNarrative,
		SystemPrompt: narrativeSystemPrompt,
		UserPrompt:   fmt.Sprintf(narrativeUserTemplate, currentText, partnerText),
	})
	if err != nil {
		s.log.Warn("narrative generation failed", zap.Error(err))
		return Narrative{Text: FallbackComment, Fallback: true}
	}

	text := cleanComment(resp.Text)
	if text == "" {
		s.log.Warn("narrative generation returned nothing usable")
		return Narrative{Text: FallbackComment, Fallback: true}
	}
	return Narrative{Text: text}
}

// cleanComment strips wrapping quotes and whitespace and enforces the length cap.
func cleanComment(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.Trim(text, "\"“”'")
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= MaxCommentRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:MaxCommentRunes-1])) + "…"
}

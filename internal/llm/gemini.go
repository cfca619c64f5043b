package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// embedTaskType asks Gemini for vectors tuned for pairwise comparison.
const embedTaskType = "SEMANTIC_SIMILARITY"

// geminiClient implements LLMClient over the Gemini API.
type geminiClient struct {
	cfg      LLMConfig
	client   *genai.Client
	observer Observer
}

// NewGeminiClient creates an LLMClient backed by google.golang.org/genai.
func NewGeminiClient(ctx context.Context, cfg LLMConfig, observer Observer) (LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty", ErrNotConfigured)
	}
	if observer == nil {
		observer = NoopObserver{}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &geminiClient{cfg: cfg, client: client, observer: observer}, nil
}

func (c *geminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()

	taskCfg := c.cfg.Tasks[req.Task]
	temp := taskCfg.Temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	maxTok := taskCfg.MaxTokens
	if req.MaxTokens != nil {
		maxTok = *req.MaxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TaskTimeout(req.Task))*time.Millisecond)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temp)),
	}
	if maxTok > 0 {
		genCfg.MaxOutputTokens = int32(maxTok)
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(req.UserPrompt), genCfg)
	var text string
	if err == nil {
		text = strings.TrimSpace(resp.Text())
		if text == "" {
			err = fmt.Errorf("%w: empty completion", ErrInvalidOutput)
		}
	}
	err = c.mapError(ctx, err)

	latency := time.Since(start).Milliseconds()
	c.observe(req.Task, c.cfg.Model, latency, err)
	if err != nil {
		return nil, err
	}
	return &GenerateResponse{Text: text, Model: c.cfg.Model, LatencyMs: latency}, nil
}

func (c *geminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TaskTimeout(TaskEmbed))*time.Millisecond)
	defer cancel()

	resp, err := c.client.Models.EmbedContent(ctx, c.cfg.EmbedModel, genai.Text(text),
		&genai.EmbedContentConfig{TaskType: embedTaskType})

	var vec []float32
	if err == nil {
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			err = ErrEmptyEmbedding
		} else {
			vec = resp.Embeddings[0].Values
		}
	}
	err = c.mapError(ctx, err)

	c.observe(TaskEmbed, c.cfg.EmbedModel, time.Since(start).Milliseconds(), err)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// Available reports whether a key is configured; the Gemini API has no cheap
// unauthenticated probe.
func (c *geminiClient) Available(context.Context) bool {
	return c.cfg.APIKey != ""
}

func (c *geminiClient) mapError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, ErrInvalidOutput), errors.Is(err, ErrEmptyEmbedding):
		return err
	case isConnectionError(err):
		return ErrUnavailable
	default:
		return fmt.Errorf("gemini: %w", err)
	}
}

func (c *geminiClient) observe(task TaskType, model string, latency int64, err error) {
	c.observer.OnCallComplete(LLMCallEvent{
		Task:      task,
		Provider:  ProviderGemini,
		Model:     model,
		LatencyMs: latency,
		Success:   err == nil,
		ErrorCode: errorCode(err),
	})
}

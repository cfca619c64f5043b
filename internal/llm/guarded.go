package llm

import (
	"context"

	"github.com/alexanderramin/noise/internal/breaker"
)

// guardedClient routes generation and embedding through separate breakers so
// an embedding outage does not block narrative generation.
type guardedClient struct {
	inner    LLMClient
	generate *breaker.Breaker
	embed    *breaker.Breaker
}

// WithBreakers wraps client so every call passes through a circuit breaker.
func WithBreakers(client LLMClient, generate, embed *breaker.Breaker) LLMClient {
	return &guardedClient{inner: client, generate: generate, embed: embed}
}

func (g *guardedClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	return breaker.Do(ctx, g.generate, func(ctx context.Context) (*GenerateResponse, error) {
		return g.inner.Generate(ctx, req)
	})
}

func (g *guardedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return breaker.Do(ctx, g.embed, func(ctx context.Context) ([]float32, error) {
		return g.inner.Embed(ctx, text)
	})
}

func (g *guardedClient) Available(ctx context.Context) bool {
	return g.inner.Available(ctx)
}

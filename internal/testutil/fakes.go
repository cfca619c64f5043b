package testutil

import (
	"context"
	"sync"

	"github.com/alexanderramin/noise/internal/llm"
	"github.com/alexanderramin/noise/internal/search"
)

// FakeEmbedder returns Vectors[text], or Default when text is unknown.
type FakeEmbedder struct {
	Vectors map[string][]float32
	Default []float32
	Err     error

	mu    sync.Mutex
	calls []string
}

func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if v, ok := f.Vectors[text]; ok {
		return append([]float32(nil), v...), nil
	}
	if f.Default == nil {
		return nil, llm.ErrEmptyEmbedding
	}
	return append([]float32(nil), f.Default...), nil
}

func (f *FakeEmbedder) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// FakeGenerator answers every request with Text, or fails with Err.
type FakeGenerator struct {
	Text string
	Err  error

	mu       sync.Mutex
	requests []llm.GenerateRequest
}

func (f *FakeGenerator) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return &llm.GenerateResponse{Text: f.Text, Model: "fake"}, nil
}

func (f *FakeGenerator) Requests() []llm.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.GenerateRequest(nil), f.requests...)
}

// FakeSearcher serves Results[query]; queries listed in Fail return Err.
type FakeSearcher struct {
	Results map[string][]search.Result
	Fail    map[string]bool
	Err     error

	mu      sync.Mutex
	queries []string
}

func (f *FakeSearcher) Search(_ context.Context, query string, limit int) ([]search.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.Fail[query] {
		return nil, f.Err
	}
	res := f.Results[query]
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return append([]search.Result(nil), res...), nil
}

func (f *FakeSearcher) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

package intelligence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/noise/internal/llm"
)

// ErrNoQueries means the model produced nothing usable; the run should stop.
var ErrNoQueries = errors.New("no recommendation queries")

// PlannedQuery is one search the recommender will run.
type PlannedQuery struct {
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

// QueryPlanner turns a member's recent messages into search queries.
type QueryPlanner interface {
	Plan(ctx context.Context, history []string) ([]PlannedQuery, error)
}

type queryPlanner struct {
	client llm.Generator
	count  int
}

// NewQueryPlanner asks for count queries per run.
func NewQueryPlanner(client llm.Generator, count int) QueryPlanner {
	if count <= 0 {
		count = 3
	}
	return &queryPlanner{client: client, count: count}
}

func (p *queryPlanner) Plan(ctx context.Context, history []string) ([]PlannedQuery, error) {
	if len(history) == 0 {
		return nil, ErrNoQueries
	}
	if p.client == nil {
		return nil, llm.ErrNotConfigured
	}

	resp, err := p.client.Generate(ctx, llm.GenerateRequest{
		Task:         llm.TaskQueryPlan,
		SystemPrompt: fmt.Sprintf(queryPlanSystemPrompt, p.count),
		UserPrompt:   fmt.Sprintf(queryPlanUserTemplate, strings.Join(history, "\n")),
	})
	if err != nil {
		return nil, fmt.Errorf("planning queries: %w", err)
	}

	planned, err := llm.ExtractJSON[[]PlannedQuery](resp.Text, nil)
	if err != nil {
		return nil, err
	}

	out := make([]PlannedQuery, 0, p.count)
	seen := map[string]bool{}
	for _, q := range planned {
		q.Query = strings.TrimSpace(q.Query)
		q.Reason = strings.TrimSpace(q.Reason)
		key := strings.ToLower(q.Query)
		if q.Query == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == p.count {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrNoQueries
	}
	return out, nil
}

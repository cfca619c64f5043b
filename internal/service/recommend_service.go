package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/noise/internal/delivery"
	"github.com/alexanderramin/noise/internal/domain"
	"github.com/alexanderramin/noise/internal/intelligence"
	"github.com/alexanderramin/noise/internal/repository"
	"github.com/alexanderramin/noise/internal/search"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHistoryWindow = 20
	DefaultResultCap     = 3

	recommendationTitle = "Reading picked from your thoughts"
)

// Recommendation is one search result carried to the member, with the
// planner's reason for suggesting it.
type Recommendation struct {
	Title   string
	Snippet string
	URL     string
	Reason  string
}

// RecommendDeps groups the collaborators of a recommendation run.
type RecommendDeps struct {
	Members  repository.MemberRepo
	Planner  intelligence.QueryPlanner
	Searcher search.Searcher
	Sink     delivery.Sink
	Logger   *zap.Logger
	Clock    func() time.Time

	// HistoryWindow and ResultCap default to 20 and 3.
	HistoryWindow int
	ResultCap     int
}

type recommendService struct {
	members  repository.MemberRepo
	planner  intelligence.QueryPlanner
	searcher search.Searcher
	sink     delivery.Sink
	log      *zap.Logger
	observer UseCaseObserver
	now      func() time.Time
	window   int
	limit    int
}

func NewRecommendService(deps RecommendDeps, observers ...UseCaseObserver) RecommendService {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	window := deps.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	limit := deps.ResultCap
	if limit <= 0 {
		limit = DefaultResultCap
	}
	return &recommendService{
		members:  deps.Members,
		planner:  deps.Planner,
		searcher: deps.Searcher,
		sink:     deps.Sink,
		log:      log,
		observer: useCaseObserverOrNoop(observers),
		now:      now,
		window:   window,
		limit:    limit,
	}
}

// Recommend plans queries from the member's recent history, searches them,
// delivers the surviving results and stamps LastRun. Every kind of absence
// (no planner, no queries, no results, no channel) ends the run without a
// stamp so the next tick retries. Only store failures are returned.
func (s *recommendService) Recommend(ctx context.Context, memberID string, rec *domain.MemberRecord) (err error) {
	startedAt := time.Now().UTC()
	runID := uuid.NewString()
	fields := map[string]any{"member_id": memberID, "run_id": runID}
	defer func() {
		observe(ctx, s.observer, UseCaseRecommendation, startedAt, err, fields)
	}()
	log := s.log.With(zap.String("member_id", memberID), zap.String("run_id", runID))

	abort := func(outcome string, cause error) error {
		fields["outcome"] = outcome
		if cause != nil {
			log.Info("recommendation aborted", zap.String("outcome", outcome), zap.Error(cause))
		} else {
			log.Info("recommendation aborted", zap.String("outcome", outcome))
		}
		return nil
	}

	if s.planner == nil || s.searcher == nil {
		return abort("not_configured", nil)
	}
	if rec == nil || rec.ChannelID == "" {
		return abort("no_channel", nil)
	}

	recent := rec.RecentHistory(s.window)
	if len(recent) == 0 {
		return abort("no_history", nil)
	}
	texts := make([]string, len(recent))
	for i, h := range recent {
		texts[i] = h.Content
	}

	queries, err := s.planner.Plan(ctx, texts)
	if err != nil {
		return abort("no_queries", err)
	}
	fields["queries"] = len(queries)

	recs := s.searchAll(ctx, log, queries)
	fields["results"] = len(recs)
	if len(recs) == 0 {
		return abort("no_results", nil)
	}

	if err := s.sink.Send(ctx, recommendationMessage(rec.ChannelID, recs)); err != nil {
		return abort("send_failed", err)
	}

	stamp := s.now()
	if _, err := s.members.Update(ctx, memberID, func(r *domain.MemberRecord) error {
		r.Recommendation.LastRun = &stamp
		return nil
	}); err != nil {
		fields["outcome"] = "stamp_failed"
		return fmt.Errorf("stamping last run: %w", err)
	}
	fields["outcome"] = "delivered"
	log.Info("recommendation delivered", zap.Int("results", len(recs)))
	return nil
}

// searchAll runs one single-result search per query in parallel. Failed
// searches are dropped. Results keep query order, deduplicated by URL and
// capped at the configured limit.
func (s *recommendService) searchAll(ctx context.Context, log *zap.Logger, queries []intelligence.PlannedQuery) []Recommendation {
	found := make([]*search.Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			results, err := s.searcher.Search(gctx, q.Query, 1)
			if err != nil {
				log.Warn("search failed", zap.String("query", q.Query), zap.Error(err))
				return nil
			}
			if len(results) > 0 {
				found[i] = &results[0]
			}
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool, len(found))
	out := make([]Recommendation, 0, s.limit)
	for i, r := range found {
		if r == nil || r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, Recommendation{
			Title:   r.Title,
			Snippet: r.Snippet,
			URL:     r.URL,
			Reason:  queries[i].Reason,
		})
		if len(out) == s.limit {
			break
		}
	}
	return out
}

func recommendationMessage(channelID string, recs []Recommendation) delivery.Message {
	msg := delivery.Message{
		ChannelID:   channelID,
		Title:       recommendationTitle,
		Description: "A few things worth a look, based on what you've been writing.",
		Color:       delivery.ColorRecommendation,
	}
	for _, r := range recs {
		var b strings.Builder
		if r.Reason != "" {
			b.WriteString(r.Reason)
			b.WriteString("\n")
		}
		if r.Snippet != "" {
			b.WriteString(r.Snippet)
			b.WriteString("\n")
		}
		b.WriteString(r.URL)
		msg.Fields = append(msg.Fields, delivery.Field{Name: r.Title, Value: b.String()})
	}
	return msg
}

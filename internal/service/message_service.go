package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/noise/internal/connection"
	"github.com/alexanderramin/noise/internal/delivery"
	"github.com/alexanderramin/noise/internal/domain"
	"github.com/alexanderramin/noise/internal/intelligence"
	"github.com/alexanderramin/noise/internal/llm"
	"github.com/alexanderramin/noise/internal/repository"
	"github.com/alexanderramin/noise/internal/tasks"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const connectionTitle = "Thought connection"

type messageService struct {
	members  repository.MemberRepo
	trigger  *connection.TriggerPolicy
	matcher  *connection.Matcher
	embedder llm.Embedder
	narrator intelligence.NarrativeService
	sink     delivery.Sink
	sup      *tasks.Supervisor
	log      *zap.Logger
	observer UseCaseObserver
	now      func() time.Time
}

// MessageDeps groups the collaborators of the message pipeline. Embedder may
// be nil, in which case messages are still recorded but never connected.
type MessageDeps struct {
	Members    repository.MemberRepo
	Trigger    *connection.TriggerPolicy
	Matcher    *connection.Matcher
	Embedder   llm.Embedder
	Narrator   intelligence.NarrativeService
	Sink       delivery.Sink
	Supervisor *tasks.Supervisor
	Logger     *zap.Logger
	Clock      func() time.Time
}

func NewMessageService(deps MessageDeps, observers ...UseCaseObserver) MessageService {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	narrator := deps.Narrator
	if narrator == nil {
		narrator = intelligence.NewNarrativeService(nil, log)
	}
	return &messageService{
		members:  deps.Members,
		trigger:  deps.Trigger,
		matcher:  deps.Matcher,
		embedder: deps.Embedder,
		narrator: narrator,
		sink:     deps.Sink,
		sup:      deps.Supervisor,
		log:      log,
		observer: useCaseObserverOrNoop(observers),
		now:      now,
	}
}

func (s *messageService) RecordMessage(ctx context.Context, memberID, text string, opts ...RecordOption) (result *RecordResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"member_id": memberID}
	defer func() {
		observe(ctx, s.observer, UseCaseRecordMessage, startedAt, err, fields)
	}()

	if strings.TrimSpace(memberID) == "" {
		return nil, fmt.Errorf("member id is required")
	}
	var o recordOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Network call stays outside the write lock. A failed embedding still
	// records the message, just without a vector.
	vector := s.embed(ctx, memberID, text)
	fields["embedded"] = len(vector) > 0

	var decision connection.Decision
	rec, err := s.members.Update(ctx, memberID, func(rec *domain.MemberRecord) error {
		rec.History = append(rec.History, domain.HistoryEntry{
			Content:   text,
			Timestamp: s.now(),
			Vector:    vector,
		})
		rec.Points++
		if rec.ChannelID == "" && o.channelID != "" {
			rec.ChannelID = o.channelID
		}
		decision = s.trigger.Evaluate(rec, text)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	fields["fired"] = decision.Fire
	fields["probability"] = decision.Probability
	if decision.ForcedKeyword != "" {
		fields["keyword"] = decision.ForcedKeyword
	}

	result = &RecordResult{Record: rec, Decision: decision}
	if !decision.Fire || s.embedder == nil || s.sup == nil {
		return result, nil
	}

	job := connectionJob{
		memberID:  memberID,
		channelID: rec.ChannelID,
		text:      text,
		vector:    vector,
		keyword:   decision.ForcedKeyword,
	}
	result.Connection = s.sup.Go("connection", func(ctx context.Context) error {
		return s.connect(ctx, job)
	})
	return result, nil
}

func (s *messageService) embed(ctx context.Context, memberID, text string) []float32 {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.log.Warn("embedding failed", zap.String("member_id", memberID), zap.Error(err))
		return nil
	}
	return vec
}

type connectionJob struct {
	memberID  string
	channelID string
	text      string
	vector    []float32
	keyword   string
}

// connect runs the match, comment and delivery steps for one fired trigger.
// Absent data ends the run quietly; only store failures are returned.
func (s *messageService) connect(ctx context.Context, job connectionJob) (err error) {
	startedAt := time.Now().UTC()
	runID := uuid.NewString()
	fields := map[string]any{"member_id": job.memberID, "run_id": runID}
	defer func() {
		observe(ctx, s.observer, UseCaseConnection, startedAt, err, fields)
	}()
	log := s.log.With(zap.String("member_id", job.memberID), zap.String("run_id", runID))

	vector := job.vector
	if len(vector) == 0 {
		vector = s.embed(ctx, job.memberID, job.text)
	}
	if len(vector) == 0 {
		fields["outcome"] = "no_vector"
		log.Debug("connection skipped: no vector")
		return nil
	}

	snap, err := s.members.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	cand, err := s.matcher.Match(vector, job.text, snap, job.keyword)
	if errors.Is(err, connection.ErrNoMatch) {
		fields["outcome"] = "no_match"
		log.Debug("connection skipped: no candidate")
		return nil
	}
	if err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	fields["tier"] = string(cand.Tier)

	if job.channelID == "" || s.sink == nil {
		fields["outcome"] = "no_channel"
		log.Info("connection not delivered: member has no channel")
		return nil
	}

	narrative := s.narrator.Synthesize(ctx, job.text, cand.Content)
	fields["fallback"] = narrative.Fallback

	msg := delivery.Message{
		ChannelID: job.channelID,
		Title:     connectionTitle,
		Color:     delivery.ColorConnection,
		Fields: []delivery.Field{
			{Name: "Your thought", Value: job.text},
			{Name: "Echo from the past", Value: cand.Content},
			{Name: "AI perspective", Value: narrative.Text},
		},
	}
	if sendErr := s.sink.Send(ctx, msg); sendErr != nil {
		fields["outcome"] = "send_failed"
		log.Warn("connection delivery failed", zap.Error(sendErr))
		return nil
	}
	fields["outcome"] = "delivered"
	log.Info("connection delivered", zap.String("tier", string(cand.Tier)), zap.Bool("fallback", narrative.Fallback))
	return nil
}

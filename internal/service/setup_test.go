package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/noise/internal/connection"
	"github.com/alexanderramin/noise/internal/delivery"
	"github.com/alexanderramin/noise/internal/domain"
	"github.com/alexanderramin/noise/internal/intelligence"
	"github.com/alexanderramin/noise/internal/repository"
	"github.com/alexanderramin/noise/internal/tasks"
	"github.com/alexanderramin/noise/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type eventRecorder struct {
	mu     sync.Mutex
	events []UseCaseEvent
}

func (r *eventRecorder) ObserveUseCase(_ context.Context, e UseCaseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) named(name string) []UseCaseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []UseCaseEvent
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type messageHarness struct {
	repo     repository.MemberRepo
	sink     *delivery.RecordingSink
	rnd      *testutil.ScriptedRand
	embedder *testutil.FakeEmbedder
	gen      *testutil.FakeGenerator
	sup      *tasks.Supervisor
	events   *eventRecorder
	svc      MessageService
}

type harnessOption func(*MessageDeps)

func withoutEmbedder() harnessOption {
	return func(d *MessageDeps) { d.Embedder = nil }
}

func withLogger(log *zap.Logger) harnessOption {
	return func(d *MessageDeps) { d.Logger = log }
}

// newMessageHarness wires a message service over an in-memory SQLite store.
// The scripted draw 0.0 makes every enabled trigger fire.
func newMessageHarness(t *testing.T, opts ...harnessOption) *messageHarness {
	t.Helper()
	h := &messageHarness{
		repo:     repository.NewSQLiteMemberRepo(testutil.NewTestDB(t)),
		sink:     &delivery.RecordingSink{},
		rnd:      &testutil.ScriptedRand{Floats: []float64{0.0}},
		embedder: &testutil.FakeEmbedder{Vectors: map[string][]float32{}, Default: []float32{1, 0}},
		gen:      &testutil.FakeGenerator{Text: "Both thoughts circle the same question."},
		sup:      tasks.NewSupervisor(zaptest.NewLogger(t)),
		events:   &eventRecorder{},
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.sup.Shutdown(ctx)
	})

	live := connection.NewLive(connection.DefaultSettings())
	deps := MessageDeps{
		Members:    h.repo,
		Trigger:    connection.NewTriggerPolicy(live, h.rnd),
		Matcher:    connection.NewMatcher(live, h.rnd),
		Embedder:   h.embedder,
		Narrator:   intelligence.NewNarrativeService(h.gen, zaptest.NewLogger(t)),
		Sink:       h.sink,
		Supervisor: h.sup,
		Logger:     zaptest.NewLogger(t),
		Clock:      func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.svc = NewMessageService(deps, h.events)
	return h
}

// seed stores a member with the given options applied to a fresh record.
func seed(t *testing.T, repo repository.MemberRepo, id string, opts ...testutil.MemberOption) {
	t.Helper()
	want := testutil.NewTestMember(opts...)
	_, err := repo.Update(context.Background(), id, func(rec *domain.MemberRecord) error {
		*rec = *want
		return nil
	})
	require.NoError(t, err)
}

func waitConnection(t *testing.T, res *RecordResult) {
	t.Helper()
	require.NotNil(t, res.Connection, "expected a connection task")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, res.Connection.Wait(ctx))
}

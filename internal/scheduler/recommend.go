package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/alexanderramin/noise/internal/domain"
	"github.com/alexanderramin/noise/internal/tasks"
	"go.uber.org/zap"
)

// DefaultPeriod is how often the scheduler wakes.
const DefaultPeriod = time.Hour

// SnapshotLoader is the read side of the member store.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// Runner performs one recommendation run for one member. It is responsible
// for stamping LastRun on success.
type Runner interface {
	Recommend(ctx context.Context, memberID string, rec *domain.MemberRecord) error
}

type Option func(*Scheduler)

func WithPeriod(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.period = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler wakes periodically and starts a recommendation run for every
// member whose interval has elapsed. Runs execute on the Supervisor; a tick
// never waits for them.
type Scheduler struct {
	store  SnapshotLoader
	runner Runner
	sup    *tasks.Supervisor
	log    *zap.Logger
	period time.Duration
	now    func() time.Time

	mu       sync.Mutex
	inflight map[string]bool
}

func New(store SnapshotLoader, runner Runner, sup *tasks.Supervisor, log *zap.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		store:    store,
		runner:   runner,
		sup:      sup,
		log:      log,
		period:   DefaultPeriod,
		now:      time.Now,
		inflight: map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ElapsedDays returns the whole days between from and to, rounded down.
// Negative spans (clock skew) count as zero.
func ElapsedDays(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Due reports whether a schedule should run at now. A schedule that never
// ran is due immediately.
func Due(sched domain.RecommendationSchedule, now time.Time) bool {
	if !sched.Enabled {
		return false
	}
	if sched.LastRun == nil {
		return true
	}
	interval := sched.IntervalDays
	if interval < 1 {
		interval = 1
	}
	return ElapsedDays(*sched.LastRun, now) >= interval
}

// Tick loads the store once and dispatches every due member. Members whose
// previous run is still in flight are skipped. Returns the number dispatched.
func (s *Scheduler) Tick(ctx context.Context) int {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		s.log.Error("scheduler could not load members", zap.Error(err))
		return 0
	}

	now := s.now()
	ids := make([]string, 0, len(snap.Members))
	for id := range snap.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	dispatched := 0
	for _, id := range ids {
		rec := snap.Members[id]
		if rec == nil || !Due(rec.Recommendation, now) {
			continue
		}
		if !s.claim(id) {
			s.log.Debug("recommendation still running", zap.String("member_id", id))
			continue
		}

		memberID := id
		task := s.sup.Go("recommendation", func(ctx context.Context) error {
			defer s.release(memberID)
			return s.runner.Recommend(ctx, memberID, rec)
		})
		if refused(task) {
			s.release(memberID)
			s.log.Warn("supervisor is shut down; recommendations not dispatched")
			break
		}
		dispatched++
	}

	if dispatched > 0 {
		s.log.Info("recommendation runs dispatched", zap.Int("count", dispatched))
	}
	return dispatched
}

// Run ticks immediately and then every period until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Tick(ctx)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// InFlight reports whether a run for memberID is executing.
func (s *Scheduler) InFlight(memberID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[memberID]
}

func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[id] {
		return false
	}
	s.inflight[id] = true
	return true
}

// refused reports whether the supervisor rejected task without running it.
func refused(task *tasks.Task) bool {
	select {
	case <-task.Done():
		return errors.Is(task.Wait(context.Background()), tasks.ErrShutdown)
	default:
		return false
	}
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexanderramin/noise/internal/bot"
	"github.com/alexanderramin/noise/internal/breaker"
	"github.com/alexanderramin/noise/internal/config"
	"github.com/alexanderramin/noise/internal/connection"
	"github.com/alexanderramin/noise/internal/delivery"
	"github.com/alexanderramin/noise/internal/intelligence"
	"github.com/alexanderramin/noise/internal/llm"
	"github.com/alexanderramin/noise/internal/metrics"
	"github.com/alexanderramin/noise/internal/repository"
	"github.com/alexanderramin/noise/internal/scheduler"
	"github.com/alexanderramin/noise/internal/search"
	"github.com/alexanderramin/noise/internal/service"
	"github.com/alexanderramin/noise/internal/tasks"
	"go.uber.org/zap"
)

// App is the fully wired bot core shared by every command.
type App struct {
	Config    config.Config
	Log       *zap.Logger
	Members   repository.MemberRepo
	Settings  *connection.Live
	Metrics   *metrics.Collector
	Tasks     *tasks.Supervisor
	Messages  service.MessageService
	Prefs     service.SettingsService
	Recommend service.RecommendService
	Scheduler *scheduler.Scheduler
	Router    *bot.Router
}

// NewApp wires the core around sink. Missing AI credentials are not an
// error: the affected pipelines become no-ops and messages are still
// recorded.
func NewApp(ctx context.Context, cfg config.Config, log *zap.Logger, sink delivery.Sink) (*App, error) {
	members, err := repository.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	collector := metrics.NewCollector("noise")
	live := connection.NewLive(cfg.Connection.Settings())
	rnd := connection.NewTimeSeededRand()
	if cfg.Connection.Seed != 0 {
		rnd = connection.NewRand(cfg.Connection.Seed)
	}
	sup := tasks.NewSupervisor(log, tasks.WithFailureHook(collector.TaskFailed))

	client := newLLMClient(ctx, cfg, log, collector)
	searcher := newSearcher(ctx, cfg, log, collector)

	observers := []service.UseCaseObserver{service.NewLogUseCaseObserver(log), collector}

	var (
		embedder llm.Embedder
		gen      llm.Generator
	)
	if client != nil {
		embedder, gen = client, client
	}

	messages := service.NewMessageService(service.MessageDeps{
		Members:    members,
		Trigger:    connection.NewTriggerPolicy(live, rnd),
		Matcher:    connection.NewMatcher(live, rnd),
		Embedder:   embedder,
		Narrator:   intelligence.NewNarrativeService(gen, log),
		Sink:       sink,
		Supervisor: sup,
		Logger:     log,
	}, observers...)

	var planner intelligence.QueryPlanner
	if gen != nil {
		planner = intelligence.NewQueryPlanner(gen, cfg.Recommend.QueryCount)
	}
	recommend := service.NewRecommendService(service.RecommendDeps{
		Members:       members,
		Planner:       planner,
		Searcher:      searcher,
		Sink:          sink,
		Logger:        log,
		HistoryWindow: cfg.Recommend.HistoryWindow,
		ResultCap:     cfg.Recommend.ResultCap,
	}, observers...)

	prefs := service.NewSettingsService(members, observers...)

	return &App{
		Config:    cfg,
		Log:       log,
		Members:   members,
		Settings:  live,
		Metrics:   collector,
		Tasks:     sup,
		Messages:  messages,
		Prefs:     prefs,
		Recommend: recommend,
		Scheduler: scheduler.New(members, recommend, sup, log, scheduler.WithPeriod(cfg.Recommend.Tick)),
		Router: bot.NewRouter(messages, prefs, sink, log,
			bot.WithDefaultInterval(cfg.Recommend.DefaultIntervalDays)),
	}, nil
}

func newLLMClient(ctx context.Context, cfg config.Config, log *zap.Logger, collector *metrics.Collector) llm.LLMClient {
	observer := llm.MultiObserver{llm.NewLogObserver(log), collector}
	client, err := llm.New(ctx, cfg.LLM.Client(), observer)
	if errors.Is(err, llm.ErrNotConfigured) {
		log.Warn("llm not configured; connections and recommendations are disabled")
		return nil
	}
	if err != nil {
		log.Error("llm client unavailable; connections and recommendations are disabled", zap.Error(err))
		return nil
	}
	return llm.WithBreakers(client,
		breaker.New(breaker.DefaultConfig("llm_generate"), log, collector.BreakerChanged),
		breaker.New(breaker.DefaultConfig("llm_embed"), log, collector.BreakerChanged),
	)
}

func newSearcher(ctx context.Context, cfg config.Config, log *zap.Logger, collector *metrics.Collector) search.Searcher {
	client, err := search.NewGoogleClient(ctx, cfg.Search.Client())
	if errors.Is(err, search.ErrNotConfigured) {
		log.Warn("search not configured; recommendations are disabled")
		return nil
	}
	if err != nil {
		log.Error("search client unavailable; recommendations are disabled", zap.Error(err))
		return nil
	}
	guarded := search.WithBreaker(client, breaker.New(breaker.DefaultConfig("search"), log, collector.BreakerChanged))
	return metrics.InstrumentSearcher(guarded, collector)
}

// WatchConfig swaps the connection section into the live settings whenever
// the config file changes. Blocks until ctx ends.
func (a *App) WatchConfig(ctx context.Context, path string) error {
	if path == "" {
		<-ctx.Done()
		return nil
	}
	return config.Watch(ctx, path, func(cfg config.Config) {
		a.Settings.Store(cfg.Connection.Settings())
	}, config.WithLogger(a.Log))
}

// Close stops background tasks, then closes the store.
func (a *App) Close(ctx context.Context) error {
	grace, cancel := context.WithTimeout(ctx, a.Config.ShutdownGrace)
	defer cancel()
	var errs []error
	if err := a.Tasks.Shutdown(grace); err != nil {
		errs = append(errs, err)
	}
	if err := a.Members.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/noise/internal/breaker"
	"github.com/alexanderramin/noise/internal/llm"
	"github.com/alexanderramin/noise/internal/search"
	"github.com/alexanderramin/noise/internal/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveUseCase_RecordMessage(t *testing.T) {
	c := NewCollector("noise")
	ctx := context.Background()

	c.ObserveUseCase(ctx, service.UseCaseEvent{Name: service.UseCaseRecordMessage, Success: true, Fields: map[string]any{"fired": false}})
	c.ObserveUseCase(ctx, service.UseCaseEvent{Name: service.UseCaseRecordMessage, Success: true, Fields: map[string]any{"fired": true}})
	c.ObserveUseCase(ctx, service.UseCaseEvent{Name: service.UseCaseRecordMessage, Success: true, Fields: map[string]any{"fired": true, "keyword": "AI"}})
	c.ObserveUseCase(ctx, service.UseCaseEvent{Name: service.UseCaseRecordMessage, Success: false, Err: errors.New("db")})

	assert.Equal(t, 3.0, testutil.ToFloat64(c.MessagesRecorded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Triggers.WithLabelValues("base")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Triggers.WithLabelValues("keyword")))
}

func TestObserveUseCase_ConnectionAndRecommendation(t *testing.T) {
	c := NewCollector("noise")
	ctx := context.Background()

	c.ObserveUseCase(ctx, service.UseCaseEvent{Name: service.UseCaseConnection, Success: true, Fields: map[string]any{"tier": "similarity", "fallback": true}})
	c.ObserveUseCase(ctx, service.UseCaseEvent{Name: service.UseCaseConnection, Success: true, Fields: map[string]any{"outcome": "no_match"}})
	c.ObserveUseCase(ctx, service.UseCaseEvent{Name: service.UseCaseRecommendation, Success: true, Fields: map[string]any{"outcome": "delivered"}})
	c.ObserveUseCase(ctx, service.UseCaseEvent{Name: service.UseCaseRecommendation, Success: false, Err: errors.New("stamp")})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Matches.WithLabelValues("similarity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NarrativeFallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Recommendations.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Recommendations.WithLabelValues("error")))
}

func TestOnCallComplete(t *testing.T) {
	c := NewCollector("noise")
	c.OnCallComplete(llm.LLMCallEvent{Task: llm.TaskEmbed, Success: true, LatencyMs: 20})
	c.OnCallComplete(llm.LLMCallEvent{Task: llm.TaskEmbed, Success: false, ErrorCode: "TIMEOUT"})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ExternalCalls.WithLabelValues("llm_embed", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ExternalCalls.WithLabelValues("llm_embed", "TIMEOUT")))
}

func TestHooks(t *testing.T) {
	c := NewCollector("noise")
	c.TaskFailed("connection", errors.New("boom"))
	c.BreakerChanged("search", gobreaker.StateClosed, gobreaker.StateOpen)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.TaskFailures.WithLabelValues("connection")))
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(c.BreakerState.WithLabelValues("search")))
}

type staticSearcher struct{ err error }

func (s staticSearcher) Search(context.Context, string, int) ([]search.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []search.Result{{URL: "https://x.example"}}, nil
}

func TestInstrumentSearcher(t *testing.T) {
	c := NewCollector("noise")
	ok := InstrumentSearcher(staticSearcher{}, c)
	open := InstrumentSearcher(staticSearcher{err: breaker.ErrOpen}, c)

	res, err := ok.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Len(t, res, 1)
	_, err = open.Search(context.Background(), "q", 1)
	require.ErrorIs(t, err, breaker.ErrOpen)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ExternalCalls.WithLabelValues("search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ExternalCalls.WithLabelValues("search", "BREAKER_OPEN")))
}

func TestRouter(t *testing.T) {
	c := NewCollector("noise")
	c.MessagesRecorded.Inc()
	srv := httptest.NewServer(NewRouter(c))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "noise_messages_recorded_total 1"))
}

func TestServerRun_StopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewCollector("noise"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

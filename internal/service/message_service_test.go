package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alexanderramin/noise/internal/delivery"
	"github.com/alexanderramin/noise/internal/intelligence"
	"github.com/alexanderramin/noise/internal/llm"
	"github.com/alexanderramin/noise/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecordMessage_RecordsBeforeDeciding(t *testing.T) {
	h := newMessageHarness(t)
	h.rnd.Floats = []float64{0.99}
	ctx := context.Background()

	res, err := h.svc.RecordMessage(ctx, "m1", "learning some programming today", InChannel("chan-m1"))
	require.NoError(t, err)

	assert.False(t, res.Decision.Fire)
	assert.Nil(t, res.Connection)
	assert.Equal(t, []string{"programming"}, res.Decision.Matched)
	assert.InDelta(t, 0.19, res.Decision.Probability, 1e-9, "keyword count is incremented before the draw")

	rec, err := h.repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Points)
	assert.Equal(t, "chan-m1", rec.ChannelID)
	require.Len(t, rec.History, 1)
	assert.Equal(t, "learning some programming today", rec.History[0].Content)
	assert.Equal(t, fixedNow, rec.History[0].Timestamp)
	assert.Equal(t, []float32{1, 0}, rec.History[0].Vector)
	assert.Equal(t, 1, rec.KeywordStats["programming"])
}

func TestRecordMessage_KeepsExistingChannel(t *testing.T) {
	h := newMessageHarness(t)
	h.rnd.Floats = []float64{0.99}
	seed(t, h.repo, "m1", testutil.WithChannel("home"))

	res, err := h.svc.RecordMessage(context.Background(), "m1", "hello", InChannel("elsewhere"))
	require.NoError(t, err)
	assert.Equal(t, "home", res.Record.ChannelID)
}

func TestRecordMessage_RequiresMemberID(t *testing.T) {
	h := newMessageHarness(t)
	_, err := h.svc.RecordMessage(context.Background(), "  ", "hello")
	require.Error(t, err)
}

func TestRecordMessage_EmbeddingFailureStillRecords(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := newMessageHarness(t, withLogger(zap.New(core)))
	h.embedder.Err = llm.ErrTimeout

	res, err := h.svc.RecordMessage(context.Background(), "m1", "a thought", InChannel("c"))
	require.NoError(t, err)
	require.Len(t, res.Record.History, 1)
	assert.Empty(t, res.Record.History[0].Vector)

	// The trigger fired; the pipeline retries the embedding once and gives up.
	waitConnection(t, res)
	assert.Len(t, h.embedder.Calls(), 2)
	assert.Empty(t, h.sink.Messages())
	assert.GreaterOrEqual(t, logs.FilterMessage("embedding failed").Len(), 1)

	events := h.events.named(UseCaseConnection)
	require.Len(t, events, 1)
	assert.Equal(t, "no_vector", events[0].Fields["outcome"])
}

func TestRecordMessage_DeliversSimilarityConnection(t *testing.T) {
	h := newMessageHarness(t)
	seed(t, h.repo, "past", testutil.WithEntry("an older, related idea", []float32{0.6, 0.8}))

	res, err := h.svc.RecordMessage(context.Background(), "m1", "a new idea", InChannel("chan-m1"))
	require.NoError(t, err)
	require.True(t, res.Decision.Fire)
	waitConnection(t, res)

	msgs := h.sink.Messages()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, "chan-m1", msg.ChannelID)
	assert.Equal(t, "Thought connection", msg.Title)
	assert.Equal(t, delivery.ColorConnection, msg.Color)
	require.Len(t, msg.Fields, 3)
	assert.Equal(t, delivery.Field{Name: "Your thought", Value: "a new idea"}, msg.Fields[0])
	assert.Equal(t, delivery.Field{Name: "Echo from the past", Value: "an older, related idea"}, msg.Fields[1])
	assert.Equal(t, delivery.Field{Name: "AI perspective", Value: "Both thoughts circle the same question."}, msg.Fields[2])

	events := h.events.named(UseCaseConnection)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.Equal(t, "similarity", events[0].Fields["tier"])
	assert.Equal(t, false, events[0].Fields["fallback"])
	assert.Equal(t, "delivered", events[0].Fields["outcome"])
}

// A failed comment never stops delivery.
func TestRecordMessage_FallbackCommentStillDelivered(t *testing.T) {
	h := newMessageHarness(t)
	h.gen.Err = llm.ErrUnavailable
	seed(t, h.repo, "past", testutil.WithEntry("an older, related idea", []float32{0.6, 0.8}))

	res, err := h.svc.RecordMessage(context.Background(), "m1", "a new idea", InChannel("chan-m1"))
	require.NoError(t, err)
	waitConnection(t, res)

	msgs := h.sink.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, intelligence.FallbackComment, msgs[0].Fields[2].Value)

	events := h.events.named(UseCaseConnection)
	require.Len(t, events, 1)
	assert.Equal(t, true, events[0].Fields["fallback"])
}

func TestRecordMessage_ForcedKeywordTier(t *testing.T) {
	h := newMessageHarness(t)
	seed(t, h.repo, "expert",
		testutil.WithKeywordCount("design", 7),
		testutil.WithEntry("design systems age badly", []float32{0, 1}),
		testutil.WithEntry("unrelated gardening note", []float32{0.6, 0.8}),
	)

	res, err := h.svc.RecordMessage(context.Background(), "m1", "thinking about design", InChannel("chan-m1"))
	require.NoError(t, err)
	assert.Equal(t, "design", res.Decision.ForcedKeyword)
	waitConnection(t, res)

	msgs := h.sink.Messages()
	require.Len(t, msgs, 1)
	// Scripted draw 0.0 lands on the first keyword entry in id order.
	assert.Equal(t, "design systems age badly", msgs[0].Fields[1].Value)
	assert.Equal(t, "keyword", h.events.named(UseCaseConnection)[0].Fields["tier"])
}

func TestRecordMessage_NoCandidateIsSilent(t *testing.T) {
	h := newMessageHarness(t)

	res, err := h.svc.RecordMessage(context.Background(), "m1", "first words ever", InChannel("chan-m1"))
	require.NoError(t, err)
	waitConnection(t, res)

	assert.Empty(t, h.sink.Messages())
	events := h.events.named(UseCaseConnection)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.Equal(t, "no_match", events[0].Fields["outcome"])
}

func TestRecordMessage_NoChannelNoDelivery(t *testing.T) {
	h := newMessageHarness(t)
	seed(t, h.repo, "past", testutil.WithEntry("an older, related idea", []float32{0.6, 0.8}))

	res, err := h.svc.RecordMessage(context.Background(), "m1", "a new idea")
	require.NoError(t, err)
	waitConnection(t, res)

	assert.Empty(t, h.sink.Messages())
	assert.Equal(t, "no_channel", h.events.named(UseCaseConnection)[0].Fields["outcome"])
}

func TestRecordMessage_SinkFailureIsNotAnError(t *testing.T) {
	h := newMessageHarness(t)
	h.sink.Err = errors.New("gateway closed")
	seed(t, h.repo, "past", testutil.WithEntry("an older, related idea", []float32{0.6, 0.8}))

	res, err := h.svc.RecordMessage(context.Background(), "m1", "a new idea", InChannel("c"))
	require.NoError(t, err)
	waitConnection(t, res)
	assert.Equal(t, "send_failed", h.events.named(UseCaseConnection)[0].Fields["outcome"])
}

func TestRecordMessage_DisabledConnectionStillCounts(t *testing.T) {
	h := newMessageHarness(t)
	seed(t, h.repo, "m1", testutil.WithConnectionDisabled())

	res, err := h.svc.RecordMessage(context.Background(), "m1", "AI and more AI")
	require.NoError(t, err)
	assert.False(t, res.Decision.Fire)
	assert.Nil(t, res.Connection)
	assert.Equal(t, 1, res.Record.KeywordStats["AI"])
	assert.Equal(t, 1, res.Record.Points)
	assert.Zero(t, h.rnd.FloatDraws)
}

func TestRecordMessage_WithoutEmbedderNeverConnects(t *testing.T) {
	h := newMessageHarness(t, withoutEmbedder())

	res, err := h.svc.RecordMessage(context.Background(), "m1", "hello", InChannel("c"))
	require.NoError(t, err)
	assert.True(t, res.Decision.Fire)
	assert.Nil(t, res.Connection)
	assert.Empty(t, res.Record.History[0].Vector)
	assert.Empty(t, h.embedder.Calls())
}

func TestRecordMessage_ObservesUseCase(t *testing.T) {
	h := newMessageHarness(t)
	h.rnd.Floats = []float64{0.99}

	_, err := h.svc.RecordMessage(context.Background(), "m1", "hello")
	require.NoError(t, err)

	events := h.events.named(UseCaseRecordMessage)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.Equal(t, "m1", events[0].Fields["member_id"])
	assert.Equal(t, false, events[0].Fields["fired"])
	assert.Equal(t, true, events[0].Fields["embedded"])
}

// Two handlers for the same member must both land their history entry.
func TestRecordMessage_ConcurrentSameMember(t *testing.T) {
	h := newMessageHarness(t)
	h.rnd.Floats = []float64{0.99}
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := h.svc.RecordMessage(ctx, "m1", fmt.Sprintf("message %d", i))
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rec, err := h.repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, n, rec.Points)
	require.Len(t, rec.History, n)
	seen := map[string]bool{}
	for _, e := range rec.History {
		seen[e.Content] = true
	}
	assert.Len(t, seen, n)
}

func TestRecordMessage_StoreFailureIsReturned(t *testing.T) {
	h := newMessageHarness(t)
	require.NoError(t, h.repo.Close())

	_, err := h.svc.RecordMessage(context.Background(), "m1", "hello")
	require.Error(t, err)

	events := h.events.named(UseCaseRecordMessage)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
}

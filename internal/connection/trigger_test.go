package connection

import (
	"math/rand/v2"
	"testing"

	"github.com/alexanderramin/noise/internal/domain"
	"github.com/alexanderramin/noise/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLive() *Live {
	s := DefaultSettings()
	s.Keywords = []string{"AI", "sauna", "travel"}
	return NewLive(s)
}

func TestKeywordProbability(t *testing.T) {
	s := DefaultSettings()
	assert.InDelta(t, 0.19, KeywordProbability(s, 1), 1e-9)
	assert.InDelta(t, 0.64, KeywordProbability(s, 6), 1e-9)
	assert.InDelta(t, 1.0, KeywordProbability(s, 10), 1e-9)
	assert.Equal(t, 1.0, KeywordProbability(s, 500))
}

func TestEvaluate_EscalatesAfterIncrement(t *testing.T) {
	rec := testutil.NewTestMember(testutil.WithKeywordCount("AI", 5))
	policy := NewTriggerPolicy(testLive(), &testutil.ScriptedRand{Floats: []float64{0.63}})

	d := policy.Evaluate(rec, "thinking about AI again")

	assert.Equal(t, 6, rec.KeywordStats["AI"])
	assert.InDelta(t, 0.64, d.Probability, 1e-9)
	assert.Equal(t, "AI", d.ForcedKeyword)
	assert.True(t, d.Fire, "0.63 < 0.64")
}

func TestEvaluate_DrawAtProbabilityDoesNotFire(t *testing.T) {
	rec := testutil.NewTestMember()
	policy := NewTriggerPolicy(testLive(), &testutil.ScriptedRand{Floats: []float64{0.05}})

	d := policy.Evaluate(rec, "nothing special")

	assert.False(t, d.Fire)
	assert.Equal(t, 0.05, d.Probability)
	assert.Empty(t, d.ForcedKeyword)
}

func TestEvaluate_BaseProbabilityIsConfigurable(t *testing.T) {
	s := DefaultSettings()
	s.BaseProbability = 0.1
	policy := NewTriggerPolicy(NewLive(s), &testutil.ScriptedRand{Floats: []float64{0.07}})

	d := policy.Evaluate(testutil.NewTestMember(), "plain")
	assert.True(t, d.Fire)
}

func TestEvaluate_PicksHighestKeyword(t *testing.T) {
	rec := testutil.NewTestMember(
		testutil.WithKeywordCount("AI", 1),
		testutil.WithKeywordCount("sauna", 4),
	)
	policy := NewTriggerPolicy(testLive(), &testutil.ScriptedRand{Floats: []float64{0.99}})

	d := policy.Evaluate(rec, "AI in the sauna")

	assert.Equal(t, "sauna", d.ForcedKeyword)
	assert.InDelta(t, 0.55, d.Probability, 1e-9)
	assert.ElementsMatch(t, []string{"AI", "sauna"}, d.Matched)
	assert.Equal(t, 2, rec.KeywordStats["AI"])
	assert.Equal(t, 5, rec.KeywordStats["sauna"])
}

func TestEvaluate_TieKeepsConfiguredOrder(t *testing.T) {
	rec := testutil.NewTestMember()
	policy := NewTriggerPolicy(testLive(), &testutil.ScriptedRand{Floats: []float64{0.99}})

	d := policy.Evaluate(rec, "travel with AI")
	assert.Equal(t, "AI", d.ForcedKeyword)
}

func TestEvaluate_DisabledStillCounts(t *testing.T) {
	rec := testutil.NewTestMember(testutil.WithConnectionDisabled())
	rnd := &testutil.ScriptedRand{Floats: []float64{0}}
	policy := NewTriggerPolicy(testLive(), rnd)

	d := policy.Evaluate(rec, "AI AI AI")

	assert.False(t, d.Fire)
	assert.Equal(t, 1, rec.KeywordStats["AI"], "one increment per message, not per occurrence")
	assert.Equal(t, "AI", d.ForcedKeyword)
	assert.Zero(t, rnd.FloatDraws, "no draw when connections are off")
}

func TestEvaluate_SubstringMatch(t *testing.T) {
	rec := testutil.NewTestMember()
	policy := NewTriggerPolicy(testLive(), &testutil.ScriptedRand{Floats: []float64{0.99}})

	policy.Evaluate(rec, "OpenAI released something")
	assert.Equal(t, 1, rec.KeywordStats["AI"])

	policy.Evaluate(rec, "ai lowercase does not count")
	assert.Equal(t, 1, rec.KeywordStats["AI"])
}

func TestEvaluate_SettingsSwapTakesEffect(t *testing.T) {
	live := testLive()
	policy := NewTriggerPolicy(live, &testutil.ScriptedRand{Floats: []float64{0.5}})
	rec := testutil.NewTestMember()

	assert.False(t, policy.Evaluate(rec, "hello").Fire)

	s := live.Load()
	s.BaseProbability = 0.9
	live.Store(s)
	assert.True(t, policy.Evaluate(rec, "hello").Fire)
}

// TestEvaluate_Invariants_CountersAndProbabilityMonotone property-tests that
// keyword counters never decrease and the effective probability never drops
// as a member keeps using a keyword.
func TestEvaluate_Invariants_CountersAndProbabilityMonotone(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	words := []string{"AI", "sauna", "travel", "lunch", "weather"}
	policy := NewTriggerPolicy(testLive(), NewRand(7))

	for trial := 0; trial < 50; trial++ {
		rec := domain.NewMemberRecord()
		rec.ConnectionEnabled = rng.IntN(2) == 1
		lastProb := map[string]float64{}

		for msg := 0; msg < 40; msg++ {
			text := ""
			for i := 0; i < rng.IntN(4); i++ {
				text += words[rng.IntN(len(words))] + " "
			}

			before := map[string]int{}
			for k, v := range rec.KeywordStats {
				before[k] = v
			}

			d := policy.Evaluate(rec, text)
			require.GreaterOrEqual(t, d.Probability, 0.05)
			require.LessOrEqual(t, d.Probability, 1.0)

			for k, v := range before {
				require.GreaterOrEqual(t, rec.KeywordStats[k], v, "trial %d: %s decreased", trial, k)
			}
			for _, kw := range d.Matched {
				p := KeywordProbability(DefaultSettings(), rec.KeywordStats[kw])
				require.GreaterOrEqual(t, p, lastProb[kw], "trial %d: %s probability dropped", trial, kw)
				lastProb[kw] = p
			}
		}
	}
}

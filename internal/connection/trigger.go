package connection

import (
	"strings"

	"github.com/alexanderramin/noise/internal/domain"
)

// Decision is the outcome of one trigger evaluation.
type Decision struct {
	Fire          bool
	ForcedKeyword string
	// Probability is the effective trigger probability that was drawn against.
	Probability float64
	Matched     []string
}

type TriggerPolicy struct {
	settings *Live
	rnd      Rand
}

func NewTriggerPolicy(settings *Live, rnd Rand) *TriggerPolicy {
	return &TriggerPolicy{settings: settings, rnd: rnd}
}

// KeywordProbability is the trigger probability for a keyword seen count times.
func KeywordProbability(s Settings, count int) float64 {
	p := s.KeywordStart + float64(count)*s.KeywordStep
	if p > 1 {
		return 1
	}
	return p
}

// Evaluate increments rec.KeywordStats for every configured keyword found in
// text, then draws against max(base, best keyword probability). Counting
// happens even when connections are off; the toggle only gates firing.
// Callers must hold the member's write lock.
func (p *TriggerPolicy) Evaluate(rec *domain.MemberRecord, text string) Decision {
	s := p.settings.Load()
	if rec.KeywordStats == nil {
		rec.KeywordStats = map[string]int{}
	}

	d := Decision{Probability: s.BaseProbability}
	best := -1.0
	for _, kw := range s.Keywords {
		if kw == "" || !strings.Contains(text, kw) {
			continue
		}
		rec.KeywordStats[kw]++
		d.Matched = append(d.Matched, kw)

		// Strictly greater keeps the earliest configured keyword on ties.
		if kp := KeywordProbability(s, rec.KeywordStats[kw]); kp > best {
			best = kp
			d.ForcedKeyword = kw
		}
	}
	if best > d.Probability {
		d.Probability = best
	}

	if !rec.ConnectionEnabled {
		return d
	}
	d.Fire = p.rnd.Float64() < d.Probability
	return d
}

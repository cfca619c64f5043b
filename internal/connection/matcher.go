package connection

import (
	"sort"
	"strings"

	"github.com/alexanderramin/noise/internal/domain"
)

type Matcher struct {
	settings *Live
	rnd      Rand
}

func NewMatcher(settings *Live, rnd Rand) *Matcher {
	return &Matcher{settings: settings, rnd: rnd}
}

// Match picks a partner for the current message from every member's history.
//
// Tiers are tried in order and the first non-empty one wins:
//  1. forced keyword: entries containing the keyword, weighted by the owner's
//     count for it.
//  2. similarity band: entries whose cosine to current lies in [BandMin, BandMax].
//  3. fallback: any entry whose text differs from currentText.
//
// Tiers 1 and 2 only consider entries with a vector of the current
// dimension. The caller's own entries are eligible. Returns ErrNoMatch when every tier is empty.
func (m *Matcher) Match(current []float32, currentText string, snap *domain.Snapshot, forcedKeyword string) (domain.Candidate, error) {
	s := m.settings.Load()
	ids := sortedIDs(snap)

	if forcedKeyword != "" {
		if c, ok := m.keywordTier(s, ids, snap, current, forcedKeyword); ok {
			return c, nil
		}
	}
	if c, ok := m.similarityTier(s, ids, snap, current); ok {
		return c, nil
	}
	if c, ok := m.fallbackTier(ids, snap, currentText); ok {
		return c, nil
	}
	return domain.Candidate{}, ErrNoMatch
}

func (m *Matcher) keywordTier(s Settings, ids []string, snap *domain.Snapshot, current []float32, kw string) (domain.Candidate, bool) {
	var pool []domain.Candidate
	total := 0.0
	for _, id := range ids {
		rec := snap.Members[id]
		bonus := float64(rec.KeywordStats[kw]) * s.ForcedWeightStep
		if bonus > s.ForcedWeightCap {
			bonus = s.ForcedWeightCap
		}
		for _, h := range rec.History {
			if !h.HasVector() || len(h.Vector) != len(current) || !strings.Contains(h.Content, kw) {
				continue
			}
			score := 1.0 + bonus
			total += score
			pool = append(pool, domain.Candidate{
				Content:        h.Content,
				OwnerID:        id,
				Score:          score,
				IsKeywordMatch: true,
				Tier:           domain.TierKeyword,
			})
		}
	}
	if len(pool) == 0 {
		return domain.Candidate{}, false
	}

	r := m.rnd.Float64() * total
	for _, c := range pool {
		r -= c.Score
		if r < 0 {
			return c, true
		}
	}
	// Rounding can leave r at a hair above zero after the last entry.
	return pool[len(pool)-1], true
}

func (m *Matcher) similarityTier(s Settings, ids []string, snap *domain.Snapshot, current []float32) (domain.Candidate, bool) {
	var pool []domain.Candidate
	for _, id := range ids {
		for _, h := range snap.Members[id].History {
			sim, ok := Cosine(current, h.Vector)
			if !ok || sim < s.BandMin || sim > s.BandMax {
				continue
			}
			pool = append(pool, domain.Candidate{
				Content: h.Content,
				OwnerID: id,
				Score:   sim,
				Tier:    domain.TierSimilarity,
			})
		}
	}
	if len(pool) == 0 {
		return domain.Candidate{}, false
	}
	return pool[m.rnd.IntN(len(pool))], true
}

func (m *Matcher) fallbackTier(ids []string, snap *domain.Snapshot, currentText string) (domain.Candidate, bool) {
	var pool []domain.Candidate
	for _, id := range ids {
		for _, h := range snap.Members[id].History {
			if h.Content == currentText {
				continue
			}
			pool = append(pool, domain.Candidate{
				Content: h.Content,
				OwnerID: id,
				Tier:    domain.TierFallback,
			})
		}
	}
	if len(pool) == 0 {
		return domain.Candidate{}, false
	}
	return pool[m.rnd.IntN(len(pool))], true
}

// sortedIDs fixes the scan order so a seeded Rand gives repeatable picks.
func sortedIDs(snap *domain.Snapshot) []string {
	if snap == nil {
		return nil
	}
	ids := make([]string, 0, len(snap.Members))
	for id, rec := range snap.Members {
		if rec != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

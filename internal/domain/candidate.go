package domain

type MatchTier string

const (
	TierKeyword    MatchTier = "keyword"
	TierSimilarity MatchTier = "similarity"
	TierFallback   MatchTier = "fallback"
)

// Candidate is a prospective connection partner computed during one matching pass.
type Candidate struct {
	Content        string
	OwnerID        string
	Score          float64
	IsKeywordMatch bool
	Tier           MatchTier
}

// Package connection decides when a message should be linked to an earlier
// one, and which earlier message to pick.
package connection

import (
	"errors"
	"sync/atomic"
)

// ErrNoMatch means the corpus held no usable partner.
var ErrNoMatch = errors.New("no connection partner")

// Settings tunes the trigger policy and matcher. Values are swapped whole at
// runtime, never mutated in place.
type Settings struct {
	Keywords        []string
	BaseProbability float64
	// Keyword probability is KeywordStart + count*KeywordStep, capped at 1.
	KeywordStart float64
	KeywordStep  float64
	// Forced-keyword partner weight is 1 + min(count*ForcedWeightStep, ForcedWeightCap).
	ForcedWeightStep float64
	ForcedWeightCap  float64
	BandMin          float64
	BandMax          float64
}

// DefaultKeywords are the topic terms whose repeated use escalates connections.
var DefaultKeywords = []string{
	// social
	"regional revitalization", "community development", "town planning", "community",
	"relocation", "education", "welfare",
	// business
	"startup", "management", "marketing", "design", "freelance", "side business",
	// tech
	"AI", "programming", "engineer", "Web3", "blockchain",
	// lifestyle
	"sauna", "strength training", "cooking", "reading", "movies", "art", "travel",
}

func DefaultSettings() Settings {
	return Settings{
		Keywords:         append([]string(nil), DefaultKeywords...),
		BaseProbability:  0.05,
		KeywordStart:     0.1,
		KeywordStep:      0.09,
		ForcedWeightStep: 0.1,
		ForcedWeightCap:  1.0,
		BandMin:          0.5,
		BandMax:          0.7,
	}
}

// Live holds the current Settings for concurrent readers.
type Live struct {
	p atomic.Pointer[Settings]
}

func NewLive(s Settings) *Live {
	l := &Live{}
	l.Store(s)
	return l
}

func (l *Live) Load() Settings {
	return *l.p.Load()
}

func (l *Live) Store(s Settings) {
	s.Keywords = append([]string(nil), s.Keywords...)
	l.p.Store(&s)
}

package domain

import (
	"encoding/json"
	"time"
)

// MemberRecord is the persisted state of one community member.
type MemberRecord struct {
	ChannelID         string                 `json:"channel_id,omitempty"`
	Points            int                    `json:"points"`
	History           []HistoryEntry         `json:"history"`
	KeywordStats      map[string]int         `json:"keyword_stats"`
	ConnectionEnabled bool                   `json:"connection_enabled"`
	Recommendation    RecommendationSchedule `json:"recommendation"`
}

// HistoryEntry is one recorded message. Vector is empty when embedding failed.
type HistoryEntry struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Vector    []float32 `json:"vector"`
}

type RecommendationSchedule struct {
	Enabled      bool       `json:"enabled"`
	IntervalDays int        `json:"interval_days"`
	LastRun      *time.Time `json:"last_run,omitempty"`
}

// NewMemberRecord returns an empty record with connections enabled.
func NewMemberRecord() *MemberRecord {
	return &MemberRecord{
		History:           []HistoryEntry{},
		KeywordStats:      map[string]int{},
		ConnectionEnabled: true,
	}
}

// HasVector reports whether the entry carries a usable embedding.
func (h HistoryEntry) HasVector() bool {
	return len(h.Vector) > 0
}

// RecentHistory returns at most n of the newest entries, oldest first.
func (m *MemberRecord) RecentHistory(n int) []HistoryEntry {
	if n <= 0 || len(m.History) == 0 {
		return nil
	}
	start := len(m.History) - n
	if start < 0 {
		start = 0
	}
	return m.History[start:]
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (m *MemberRecord) Clone() *MemberRecord {
	if m == nil {
		return nil
	}
	c := *m
	c.History = make([]HistoryEntry, len(m.History))
	for i, h := range m.History {
		c.History[i] = h
		if h.Vector != nil {
			c.History[i].Vector = append([]float32(nil), h.Vector...)
		}
	}
	c.KeywordStats = make(map[string]int, len(m.KeywordStats))
	for k, v := range m.KeywordStats {
		c.KeywordStats[k] = v
	}
	if m.Recommendation.LastRun != nil {
		t := *m.Recommendation.LastRun
		c.Recommendation.LastRun = &t
	}
	return &c
}

// UnmarshalJSON fills defaults for documents written before a field existed:
// a missing connection_enabled means enabled.
func (m *MemberRecord) UnmarshalJSON(data []byte) error {
	type plain MemberRecord
	aux := struct {
		*plain
		ConnectionEnabled *bool `json:"connection_enabled"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.ConnectionEnabled = aux.ConnectionEnabled == nil || *aux.ConnectionEnabled
	if m.History == nil {
		m.History = []HistoryEntry{}
	}
	if m.KeywordStats == nil {
		m.KeywordStats = map[string]int{}
	}
	return nil
}

package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/noise/internal/domain"
	"github.com/google/uuid"
)

var testChannelCounter atomic.Int64

// Member options
type MemberOption func(*domain.MemberRecord)

func WithChannel(id string) MemberOption {
	return func(m *domain.MemberRecord) {
		m.ChannelID = id
	}
}

func WithPoints(n int) MemberOption {
	return func(m *domain.MemberRecord) {
		m.Points = n
	}
}

func WithKeywordCount(keyword string, n int) MemberOption {
	return func(m *domain.MemberRecord) {
		m.KeywordStats[keyword] = n
	}
}

func WithConnectionDisabled() MemberOption {
	return func(m *domain.MemberRecord) {
		m.ConnectionEnabled = false
	}
}

// WithEntry appends a history entry. A nil vector records a failed embedding.
func WithEntry(content string, vector []float32) MemberOption {
	return func(m *domain.MemberRecord) {
		m.History = append(m.History, domain.HistoryEntry{
			Content:   content,
			Timestamp: time.Now().UTC().Add(time.Duration(len(m.History)) * time.Second),
			Vector:    vector,
		})
	}
}

func WithRecommendation(intervalDays int, lastRun *time.Time) MemberOption {
	return func(m *domain.MemberRecord) {
		m.Recommendation = domain.RecommendationSchedule{
			Enabled:      true,
			IntervalDays: intervalDays,
			LastRun:      lastRun,
		}
	}
}

func NewTestMember(opts ...MemberOption) *domain.MemberRecord {
	m := domain.NewMemberRecord()
	m.ChannelID = fmt.Sprintf("chan-%03d", testChannelCounter.Add(1))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMemberID returns a fresh random member id.
func NewMemberID() string {
	return uuid.New().String()
}

// DaysAgo returns a pointer to now minus n days, for schedule fixtures.
func DaysAgo(now time.Time, n int) *time.Time {
	t := now.AddDate(0, 0, -n)
	return &t
}

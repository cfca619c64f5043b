package service

import (
	"context"
	"errors"

	"github.com/alexanderramin/noise/internal/connection"
	"github.com/alexanderramin/noise/internal/domain"
	"github.com/alexanderramin/noise/internal/tasks"
)

// ErrInvalidInterval is returned for a recommendation interval below one day.
var ErrInvalidInterval = errors.New("interval must be at least one day")

// MessageService records member messages and drives the connection pipeline.
type MessageService interface {
	// RecordMessage appends the message to the member's history, awards a
	// point, counts keywords and decides whether to start a connection. The
	// connection itself runs in the background.
	RecordMessage(ctx context.Context, memberID, text string, opts ...RecordOption) (*RecordResult, error)
}

// SettingsService changes per-member preferences.
type SettingsService interface {
	SetConnectionEnabled(ctx context.Context, memberID string, enabled bool) error
	// ToggleConnection flips the connection flag and returns the new value.
	ToggleConnection(ctx context.Context, memberID string) (bool, error)
	SetRecommendationSchedule(ctx context.Context, memberID string, enabled bool, intervalDays int) error
	// Status returns a copy of the member's record.
	Status(ctx context.Context, memberID string) (*domain.MemberRecord, error)
}

// RecommendService runs one recommendation for one member.
type RecommendService interface {
	Recommend(ctx context.Context, memberID string, rec *domain.MemberRecord) error
}

type recordOptions struct {
	channelID string
}

type RecordOption func(*recordOptions)

// InChannel binds the member to channelID if they have no channel yet.
func InChannel(channelID string) RecordOption {
	return func(o *recordOptions) { o.channelID = channelID }
}

// RecordResult reports what RecordMessage decided.
type RecordResult struct {
	Record   *domain.MemberRecord
	Decision connection.Decision
	// Connection is the background pipeline, nil when nothing was started.
	Connection *tasks.Task
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/noise/internal/domain"
	"github.com/alexanderramin/noise/internal/repository"
)

type settingsService struct {
	members  repository.MemberRepo
	observer UseCaseObserver
}

func NewSettingsService(members repository.MemberRepo, observers ...UseCaseObserver) SettingsService {
	return &settingsService{members: members, observer: useCaseObserverOrNoop(observers)}
}

func (s *settingsService) SetConnectionEnabled(ctx context.Context, memberID string, enabled bool) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"member_id": memberID, "setting": "connection", "enabled": enabled}
	defer func() { observe(ctx, s.observer, UseCaseSettings, startedAt, err, fields) }()

	_, err = s.members.Update(ctx, memberID, func(rec *domain.MemberRecord) error {
		rec.ConnectionEnabled = enabled
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting connection flag: %w", err)
	}
	return nil
}

func (s *settingsService) ToggleConnection(ctx context.Context, memberID string) (enabled bool, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"member_id": memberID, "setting": "connection"}
	defer func() {
		fields["enabled"] = enabled
		observe(ctx, s.observer, UseCaseSettings, startedAt, err, fields)
	}()

	rec, err := s.members.Update(ctx, memberID, func(rec *domain.MemberRecord) error {
		rec.ConnectionEnabled = !rec.ConnectionEnabled
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggling connection flag: %w", err)
	}
	return rec.ConnectionEnabled, nil
}

// SetRecommendationSchedule enables or disables periodic recommendations.
// Disabling keeps the interval and last run so a later enable resumes them.
func (s *settingsService) SetRecommendationSchedule(ctx context.Context, memberID string, enabled bool, intervalDays int) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"member_id": memberID, "setting": "recommendation", "enabled": enabled, "interval_days": intervalDays}
	defer func() { observe(ctx, s.observer, UseCaseSettings, startedAt, err, fields) }()

	if enabled && intervalDays < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, intervalDays)
	}
	_, err = s.members.Update(ctx, memberID, func(rec *domain.MemberRecord) error {
		rec.Recommendation.Enabled = enabled
		if enabled {
			rec.Recommendation.IntervalDays = intervalDays
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting recommendation schedule: %w", err)
	}
	return nil
}

func (s *settingsService) Status(ctx context.Context, memberID string) (*domain.MemberRecord, error) {
	rec, err := s.members.Get(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("loading member %s: %w", memberID, err)
	}
	return rec, nil
}

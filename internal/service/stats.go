package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nexuspay/webhook-relay/internal/repository"
)

const defaultStatsWindowDays = 30

// Statistics aggregates event and attempt activity over a trailing window.
type Statistics struct {
	WindowDays  int              `json:"windowDays"`
	TotalEvents int64            `json:"totalEvents"`
	ByOutcome   map[string]int64 `json:"byOutcome"`
	ByType      map[string]int64 `json:"byType"`
	ByDay       map[string]int64 `json:"byDay"`
}

// StatsService serves the management statistics endpoint.
type StatsService struct {
	events   repository.EventRepository
	attempts repository.AttemptRepository
	now      func() time.Time
}

func NewStatsService(events repository.EventRepository, attempts repository.AttemptRepository) (*StatsService, error) {
	if events == nil {
		return nil, fmt.Errorf("event repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}

	return &StatsService{
		events:   events,
		attempts: attempts,
		now:      time.Now,
	}, nil
}

func (s *StatsService) Collect(ctx context.Context, days int) (*Statistics, error) {
	if days <= 0 {
		days = defaultStatsWindowDays
	}
	since := s.now().AddDate(0, 0, -days)

	total, err := s.events.CountSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	byType, err := s.events.CountByTypeSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by type: %w", err)
	}

	byDay, err := s.events.CountByDaySince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by day: %w", err)
	}

	byOutcome, err := s.attempts.CountByOutcomeSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts by outcome: %w", err)
	}

	stats := &Statistics{
		WindowDays:  days,
		TotalEvents: total,
		ByOutcome:   make(map[string]int64, len(byOutcome)),
		ByType:      make(map[string]int64, len(byType)),
		ByDay:       make(map[string]int64, len(byDay)),
	}
	for _, row := range byOutcome {
		stats.ByOutcome[row.Outcome.String()] = row.Count
	}
	for _, row := range byType {
		stats.ByType[row.NotificationType] = row.Count
	}
	for _, row := range byDay {
		stats.ByDay[row.Day] = row.Count
	}
	return stats, nil
}

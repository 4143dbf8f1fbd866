package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/helpdesk-sla/internal/calendar"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

const calendarCacheKey = "helpdesk:calendar:snapshot"

// CalendarLoader is the uncached source of calendar data.
type CalendarLoader interface {
	Active(ctx context.Context) (*domain.OperationalHours, error)
	Holidays(ctx context.Context) ([]string, error)
}

type calendarSnapshot struct {
	Hours    *domain.OperationalHours `json:"hours"`
	Holidays []string                 `json:"holidays"`
}

// CachedCalendarSource builds calendars from operational hours and holidays,
// caching the raw snapshot in Redis for ttl. A nil Redis client disables the
// cache.
type CachedCalendarSource struct {
	loader CalendarLoader
	redis  redis.Cmdable
	ttl    time.Duration
	loc    *time.Location
	logger *zap.Logger
	group  singleflight.Group
}

// NewCachedCalendarSource wires the cache.
func NewCachedCalendarSource(loader CalendarLoader, client redis.Cmdable, ttl time.Duration, loc *time.Location, logger *zap.Logger) *CachedCalendarSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCalendarSource{
		loader: loader,
		redis:  client,
		ttl:    ttl,
		loc:    loc,
		logger: logger,
	}
}

// Calendar returns the current operational calendar.
func (s *CachedCalendarSource) Calendar(ctx context.Context) (*calendar.Calendar, error) {
	if snapshot, ok := s.cached(ctx); ok {
		return s.build(snapshot), nil
	}

	v, err, _ := s.group.Do(calendarCacheKey, func() (any, error) {
		snapshot, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		s.store(ctx, snapshot)
		return snapshot, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load operational calendar: %w", err)
	}
	return s.build(v.(calendarSnapshot)), nil
}

// Invalidate drops the cached snapshot after operational hours change.
func (s *CachedCalendarSource) Invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, calendarCacheKey).Err()
}

func (s *CachedCalendarSource) load(ctx context.Context) (calendarSnapshot, error) {
	hours, err := s.loader.Active(ctx)
	if err != nil {
		return calendarSnapshot{}, err
	}
	holidays, err := s.loader.Holidays(ctx)
	if err != nil {
		return calendarSnapshot{}, err
	}
	return calendarSnapshot{Hours: hours, Holidays: holidays}, nil
}

func (s *CachedCalendarSource) cached(ctx context.Context) (calendarSnapshot, bool) {
	if s.redis == nil {
		return calendarSnapshot{}, false
	}
	raw, err := s.redis.Get(ctx, calendarCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("calendar cache read failed", zap.Error(err))
		}
		return calendarSnapshot{}, false
	}
	var snapshot calendarSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		s.logger.Warn("calendar cache entry unreadable", zap.Error(err))
		return calendarSnapshot{}, false
	}
	return snapshot, true
}

func (s *CachedCalendarSource) store(ctx context.Context, snapshot calendarSnapshot) {
	if s.redis == nil || s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, calendarCacheKey, data, s.ttl).Err(); err != nil {
		s.logger.Warn("calendar cache write failed", zap.Error(err))
	}
}

func (s *CachedCalendarSource) build(snapshot calendarSnapshot) *calendar.Calendar {
	return calendar.New(snapshot.Hours, domain.NewHolidaySet(snapshot.Holidays...), s.loc)
}

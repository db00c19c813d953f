package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"activityinsight/internal/db"
	"activityinsight/internal/payload"
	"activityinsight/internal/sink"
)

const (
	// TopPagesLimit is the length of the top pages ranking in summaries.
	TopPagesLimit = 10
	// ActiveWindow is how far back the dashboard looks for active users.
	ActiveWindow = 15 * time.Minute
	// MaxTrendDays bounds the trend lookback.
	MaxTrendDays = 90

	dayLayout = "2006-01-02"
)

// ErrInvalidMetadata is returned by Track when the metadata value cannot be
// serialized as JSON.
var ErrInvalidMetadata = errors.New("metadata is not JSON-serializable")

// Store is the part of db.ActivityStore the service reads and writes through.
type Store interface {
	Insert(ctx context.Context, in db.NewActivity) (db.ActivityEvent, error)
	FetchByID(ctx context.Context, id uint) (db.ActivityEvent, error)
	FetchByUser(ctx context.Context, userID string, offset, limit int) ([]db.ActivityEvent, int64, error)
	FetchRecent(ctx context.Context, limit int) ([]db.ActivityEvent, error)
	CountAll(ctx context.Context) (int64, error)
	CountDistinctUsers(ctx context.Context) (int64, error)
	CountByEventType(ctx context.Context) (map[string]int64, error)
	TopPages(ctx context.Context, n int) ([]db.PageCount, error)
	CountSince(ctx context.Context, t time.Time) (int64, error)
	CountDistinctUsersSince(ctx context.Context, t time.Time) (int64, error)
	BucketCountsByDay(ctx context.Context, start, end time.Time) (map[string]int64, error)
}

// Service tracks activities and computes the summary, trend and dashboard
// views. It holds no mutable state; every call reads the store afresh.
type Service struct {
	store Store
	sink  sink.Sink
	log   *zap.Logger
	now   func() time.Time
}

// NewService wires the service. out may be nil when no sinks are configured.
func NewService(store Store, out sink.Sink, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if out == nil {
		out = sink.NewMulti(log, nil)
	}
	return &Service{store: store, sink: out, log: log, now: time.Now}
}

// Track stores one activity and returns it as it will be read back.
func (s *Service) Track(ctx context.Context, in TrackInput) (Activity, error) {
	text, err := payload.Encode(in.Metadata)
	if err != nil {
		return Activity{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	row, err := s.store.Insert(ctx, db.NewActivity{
		UserID:    in.UserID,
		EventType: in.EventType,
		Page:      in.Page,
		Payload:   text,
		CreatedAt: in.Timestamp,
	})
	if err != nil {
		return Activity{}, err
	}

	act := FromEvent(row)
	s.publish(ctx, act)
	return act, nil
}

// publish mirrors a committed activity to the sinks. Failures are logged by the
// sink fan-out and never undo or fail the track call.
func (s *Service) publish(ctx context.Context, act Activity) {
	rec := sink.Record{
		ID:        act.ID,
		UserID:    act.UserID,
		EventType: act.EventType,
		Page:      act.Page,
		CreatedAt: act.CreatedAt,
	}
	if act.Metadata != nil {
		if text, err := payload.Encode(act.Metadata); err == nil && text != nil {
			rec.Metadata = datatypes.JSON(*text)
		}
	}
	if err := s.sink.Publish(ctx, rec); err != nil {
		s.log.Debug("activity not mirrored", zap.Uint("activity_id", act.ID), zap.Error(err))
	}
}

// Get returns a single activity by id.
func (s *Service) Get(ctx context.Context, id uint) (Activity, error) {
	row, err := s.store.FetchByID(ctx, id)
	if err != nil {
		return Activity{}, err
	}
	return FromEvent(row), nil
}

// History is a FetchFunc over one user's events, newest first.
func (s *Service) History(userID string) FetchFunc[Activity] {
	return func(ctx context.Context, offset, limit int) ([]Activity, int64, error) {
		rows, total, err := s.store.FetchByUser(ctx, userID, offset, limit)
		if err != nil {
			return nil, 0, err
		}
		return fromEvents(rows), total, nil
	}
}

// Summary aggregates the whole table. A failing sub-query fails the call.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return Summary{}, err
	}
	users, err := s.store.CountDistinctUsers(ctx)
	if err != nil {
		return Summary{}, err
	}
	byType, err := s.store.CountByEventType(ctx)
	if err != nil {
		return Summary{}, err
	}
	top, err := s.store.TopPages(ctx, TopPagesLimit)
	if err != nil {
		return Summary{}, err
	}
	if byType == nil {
		byType = map[string]int64{}
	}
	if top == nil {
		top = []db.PageCount{}
	}

	return Summary{
		TotalActivities: total,
		UniqueUsers:     users,
		ByEventType:     byType,
		TopPages:        top,
	}, nil
}

// TrendSeries returns one point per UTC day for the last days days, oldest
// first and ending today. Days without events have a zero count.
func (s *Service) TrendSeries(ctx context.Context, days int) ([]TrendPoint, error) {
	if days < 1 {
		return []TrendPoint{}, nil
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))

	buckets, err := s.store.BucketCountsByDay(ctx, start, now)
	if err != nil {
		return nil, err
	}

	series := make([]TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(dayLayout)
		series = append(series, TrendPoint{Date: date, Count: buckets[date]})
	}
	return series, nil
}

// Trends is the paginated form of TrendSeries. The total is always the full
// series length, i.e. days.
func (s *Service) Trends(ctx context.Context, days, offset, limit int) ([]TrendPoint, int64, error) {
	series, err := s.TrendSeries(ctx, days)
	if err != nil {
		return nil, 0, err
	}

	n := len(series)
	lo := clamp(offset, 0, n)
	hi := lo + clamp(limit, 0, n-lo)
	return series[lo:hi], int64(n), nil
}

// TrendsFetch adapts Trends to the pagination coordinator.
func (s *Service) TrendsFetch(days int) FetchFunc[TrendPoint] {
	return func(ctx context.Context, offset, limit int) ([]TrendPoint, int64, error) {
		return s.Trends(ctx, days, offset, limit)
	}
}

// Overview combines the summary, the most recent activities and the number of
// users active in the last ActiveWindow.
func (s *Service) Overview(ctx context.Context, recentLimit int) (Overview, error) {
	summary, err := s.Summary(ctx)
	if err != nil {
		return Overview{}, err
	}
	recent, err := s.store.FetchRecent(ctx, recentLimit)
	if err != nil {
		return Overview{}, err
	}
	active, err := s.store.CountDistinctUsersSince(ctx, s.now().Add(-ActiveWindow))
	if err != nil {
		return Overview{}, err
	}

	return Overview{
		TotalActivities:    summary.TotalActivities,
		ActiveUsersLast15m: active,
		RecentActivities:   fromEvents(recent),
		TopPages:           summary.TopPages,
	}, nil
}

// ActiveSince reports events and distinct users since the given instant.
func (s *Service) ActiveSince(ctx context.Context, since time.Time) (events, users int64, err error) {
	if events, err = s.store.CountSince(ctx, since); err != nil {
		return 0, 0, err
	}
	if users, err = s.store.CountDistinctUsersSince(ctx, since); err != nil {
		return 0, 0, err
	}
	return events, users, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

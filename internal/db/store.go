package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrInvalidWindow is returned when a paginated read is called with
// limit < 1 or offset < 0.
var ErrInvalidWindow = errors.New("invalid offset/limit")

// ActivityStore is the only component that talks to the activities table.
// It is safe for concurrent use; each call runs on the shared *gorm.DB pool.
type ActivityStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewActivityStore(db *gorm.DB) *ActivityStore {
	return &ActivityStore{db: db, now: time.Now}
}

// recentOrder is the canonical ordering for history and recent listings.
func recentOrder(q *gorm.DB) *gorm.DB {
	return q.Order("created_at DESC").Order("id DESC")
}

// Insert persists a new event in its own transaction and returns the stored row.
func (s *ActivityStore) Insert(ctx context.Context, in NewActivity) (ActivityEvent, error) {
	createdAt := s.now().UTC()
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		createdAt = in.CreatedAt.UTC()
	}

	row := ActivityEvent{
		UserID:    in.UserID,
		EventType: in.EventType,
		Page:      in.Page,
		Payload:   in.Payload,
		CreatedAt: createdAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return ActivityEvent{}, storeErr("insert", err)
	}
	return row, nil
}

// FetchByID loads one event. A missing id yields ErrNotFound.
func (s *ActivityStore) FetchByID(ctx context.Context, id uint) (ActivityEvent, error) {
	// Find with Limit(1) so "not found" is not logged as an error by GORM.
	var row ActivityEvent
	res := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&row)
	if res.Error != nil {
		return ActivityEvent{}, storeErr("fetch_by_id", res.Error)
	}
	if res.RowsAffected == 0 {
		return ActivityEvent{}, storeErr("fetch_by_id", ErrNotFound)
	}
	return row, nil
}

// FetchByUser returns one window of a user's history plus the total number of
// events the user has, independent of the window.
func (s *ActivityStore) FetchByUser(ctx context.Context, userID string, offset, limit int) ([]ActivityEvent, int64, error) {
	if limit < 1 || offset < 0 {
		return nil, 0, storeErr("fetch_by_user", ErrInvalidWindow)
	}

	q := s.db.WithContext(ctx).Model(&ActivityEvent{}).
		Where("user_id = ?", userID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storeErr("fetch_by_user", err)
	}

	rows := make([]ActivityEvent, 0, limit)
	if total > int64(offset) {
		if err := recentOrder(q).Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
			return nil, 0, storeErr("fetch_by_user", err)
		}
	}
	return rows, total, nil
}

// FetchRecent returns the latest events across all users.
func (s *ActivityStore) FetchRecent(ctx context.Context, limit int) ([]ActivityEvent, error) {
	if limit < 1 {
		return nil, storeErr("fetch_recent", ErrInvalidWindow)
	}
	rows := make([]ActivityEvent, 0, limit)
	if err := recentOrder(s.db.WithContext(ctx).Model(&ActivityEvent{})).Limit(limit).Find(&rows).Error; err != nil {
		return nil, storeErr("fetch_recent", err)
	}
	return rows, nil
}

func (s *ActivityStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ActivityEvent{}).Count(&n).Error; err != nil {
		return 0, storeErr("count_all", err)
	}
	return n, nil
}

func (s *ActivityStore) CountDistinctUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ActivityEvent{}).
		Select("COUNT(DISTINCT user_id)").
		Scan(&n).Error; err != nil {
		return 0, storeErr("count_distinct_users", err)
	}
	return n, nil
}

// CountByEventType returns the number of events per event type.
func (s *ActivityStore) CountByEventType(ctx context.Context) (map[string]int64, error) {
	type typeRow struct {
		EventType string
		Count     int64
	}
	var rows []typeRow
	if err := s.db.WithContext(ctx).Model(&ActivityEvent{}).
		Select("event_type AS event_type, count(*) AS count").
		Group("event_type").
		Scan(&rows).Error; err != nil {
		return nil, storeErr("count_by_event_type", err)
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.EventType] = r.Count
	}
	return out, nil
}

// TopPages ranks pages by event count, highest first, ties by page name.
// Events without a page are ignored.
func (s *ActivityStore) TopPages(ctx context.Context, n int) ([]PageCount, error) {
	rows := make([]PageCount, 0, n)
	if n < 1 {
		return rows, nil
	}
	if err := s.db.WithContext(ctx).Model(&ActivityEvent{}).
		Select("page AS page, count(*) AS count").
		Where("page IS NOT NULL").
		Group("page").
		Order("count(*) DESC").
		Order("page ASC").
		Limit(n).
		Scan(&rows).Error; err != nil {
		return nil, storeErr("top_pages", err)
	}
	return rows, nil
}

// CountSince counts events created at or after t.
func (s *ActivityStore) CountSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ActivityEvent{}).
		Where("created_at >= ?", t.UTC()).
		Count(&n).Error; err != nil {
		return 0, storeErr("count_since", err)
	}
	return n, nil
}

// CountDistinctUsersSince counts users with at least one event at or after t.
func (s *ActivityStore) CountDistinctUsersSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ActivityEvent{}).
		Select("COUNT(DISTINCT user_id)").
		Where("created_at >= ?", t.UTC()).
		Scan(&n).Error; err != nil {
		return 0, storeErr("count_distinct_users_since", err)
	}
	return n, nil
}

// BucketCountsByDay counts events with start <= created_at <= end, keyed by
// UTC calendar date (YYYY-MM-DD). Days without events are absent.
func (s *ActivityStore) BucketCountsByDay(ctx context.Context, start, end time.Time) (map[string]int64, error) {
	type dayRow struct {
		Day   string
		Count int64
	}

	// Use Raw so GROUP BY is never parameterized.
	expr := s.dayExpr()
	sql := `SELECT ` + expr + ` AS day, count(*) AS count FROM activities` +
		` WHERE created_at >= ? AND created_at <= ?` +
		` GROUP BY ` + expr + ` ORDER BY 1`

	var rows []dayRow
	if err := s.db.WithContext(ctx).Raw(sql, start.UTC(), end.UTC()).Scan(&rows).Error; err != nil {
		return nil, storeErr("bucket_counts_by_day", err)
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Day] = r.Count
	}
	return out, nil
}

// dayExpr renders created_at as a UTC YYYY-MM-DD string for the current dialect.
func (s *ActivityStore) dayExpr() string {
	switch s.db.Dialector.Name() {
	case "sqlite":
		return `strftime('%Y-%m-%d', created_at)`
	default:
		return `to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')`
	}
}

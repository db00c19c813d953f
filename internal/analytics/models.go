package analytics

import (
	"time"

	"activityinsight/internal/db"
	"activityinsight/internal/payload"
)

// Activity is the API form of a stored event, with metadata decoded.
type Activity struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"user_id"`
	EventType string    `json:"event_type"`
	Page      *string   `json:"page"`
	Metadata  any       `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// FromEvent decodes a stored row. Metadata that is not valid JSON comes back
// as {"raw": text}.
func FromEvent(e db.ActivityEvent) Activity {
	return Activity{
		ID:        e.ID,
		UserID:    e.UserID,
		EventType: e.EventType,
		Page:      e.Page,
		Metadata:  payload.Decode(e.Payload),
		CreatedAt: e.CreatedAt.UTC(),
	}
}

func fromEvents(rows []db.ActivityEvent) []Activity {
	out := make([]Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromEvent(r))
	}
	return out
}

// TrackInput is a validated request to record one activity.
type TrackInput struct {
	UserID    string
	EventType string
	Page      *string
	Metadata  any
	Timestamp *time.Time
}

type Summary struct {
	TotalActivities int64            `json:"total_activities"`
	UniqueUsers     int64            `json:"unique_users"`
	ByEventType     map[string]int64 `json:"by_event_type"`
	TopPages        []db.PageCount   `json:"top_pages"`
}

// TrendPoint is the number of events on one UTC calendar day.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type Overview struct {
	TotalActivities    int64          `json:"total_activities"`
	ActiveUsersLast15m int64          `json:"active_users_last_15m"`
	RecentActivities   []Activity     `json:"recent_activities"`
	TopPages           []db.PageCount `json:"top_pages"`
}

package db

import (
	"time"
)

// ActivityEvent is a single tracked user action. Rows are append-only:
// nothing in the service updates or deletes them.
type ActivityEvent struct {
	ID uint `gorm:"primaryKey"`

	UserID    string `gorm:"size:255;not null;index;index:idx_activities_user_created,priority:1"`
	EventType string `gorm:"size:128;not null;index"`

	// Page is the route or screen the action happened on, when known.
	Page *string `gorm:"size:1024;index"`

	// Payload holds the event metadata serialized as JSON text. Rows whose
	// text is not valid JSON are still read back, wrapped as {"raw": text}.
	Payload *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;index;index:idx_activities_user_created,priority:2"`
}

func (ActivityEvent) TableName() string {
	return "activities"
}

// NewActivity is the input to ActivityStore.Insert. Payload must already be
// encoded; CreatedAt defaults to the insertion instant when nil.
type NewActivity struct {
	UserID    string
	EventType string
	Page      *string
	Payload   *string
	CreatedAt *time.Time
}

// PageCount is one row of the top pages ranking.
type PageCount struct {
	Page  string `json:"page"`
	Count int64  `json:"count"`
}

// Package sink mirrors tracked activities to external systems after they
// have been committed to the database.
package sink

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Record is the outbound form of a stored activity. Metadata is always valid
// JSON (or empty when the activity has none).
type Record struct {
	ID        uint           `json:"id"`
	UserID    string         `json:"user_id"`
	EventType string         `json:"event_type"`
	Page      *string        `json:"page,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink receives every activity once it is durable.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rec Record) error
	Close() error
}

// ErrorHook is told about every failed publish, e.g. to count it.
type ErrorHook func(sink string, err error)

// Multi fans a record out to every configured sink. It keeps going when a
// sink fails and reports the last error.
type Multi struct {
	sinks   []Sink
	log     *zap.Logger
	onError ErrorHook
}

// NewMulti builds a fan-out over sinks. A Multi with no sinks is a no-op.
func NewMulti(log *zap.Logger, onError ErrorHook, sinks ...Sink) *Multi {
	if log == nil {
		log = zap.NewNop()
	}
	return &Multi{sinks: sinks, log: log, onError: onError}
}

func (m *Multi) Name() string { return "multi" }

// Len reports how many sinks are configured.
func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Publish(ctx context.Context, rec Record) error {
	var lastErr error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, rec); err != nil {
			m.Report(s.Name(), err)
			lastErr = err
		}
	}
	return lastErr
}

// Report logs and forwards a sink failure. Sinks that fail asynchronously
// call it from their delivery callbacks.
func (m *Multi) Report(name string, err error) {
	m.log.Warn("activity sink publish failed", zap.String("sink", name), zap.Error(err))
	if m.onError != nil {
		m.onError(name, err)
	}
}

func (m *Multi) Close() error {
	var lastErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			m.log.Warn("activity sink close failed", zap.String("sink", s.Name()), zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

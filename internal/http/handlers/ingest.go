package handlers

import (
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"activityinsight/internal/analytics"
	"activityinsight/internal/payload"
)

type trackRequest struct {
	UserID    string  `json:"user_id" validate:"notblank,max=255"`
	EventType string  `json:"event_type" validate:"notblank,max=128"`
	Page      *string `json:"page" validate:"omitempty,max=1024"`
	Metadata  any     `json:"metadata" validate:"-"`
	// Payload is an accepted alias of Metadata.
	Payload   any      `json:"payload" validate:"-"`
	Timestamp *isoTime `json:"timestamp" validate:"-"`
}

func (r trackRequest) input() analytics.TrackInput {
	meta := r.Metadata
	if meta == nil {
		meta = r.Payload
	}
	in := analytics.TrackInput{
		UserID:    r.UserID,
		EventType: r.EventType,
		Page:      r.Page,
		Metadata:  meta,
	}
	if r.Timestamp != nil {
		ts := r.Timestamp.Time
		in.Timestamp = &ts
	}
	return in
}

// Track stores one activity and answers 201 with the stored representation.
func Track(svc *analytics.Service, m *Metrics, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req trackRequest
		if err := payload.Unmarshal(ctx.PostBody(), &req); err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				err = invalid("body", "invalid JSON body")
			}
			writeError(ctx, log, err)
			return
		}
		if err := validateStruct(req); err != nil {
			writeError(ctx, log, err)
			return
		}

		act, err := svc.Track(ctx, req.input())
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		m.Tracked(act.EventType)
		jsonResponse(ctx, fasthttp.StatusCreated, act)
	}
}

package handlers

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"activityinsight/internal/analytics"
)

const (
	defaultTrendDays     = 14
	defaultActiveMinutes = 15
)

type trendsQuery struct {
	Days int `json:"days" validate:"min=1,max=90"`
	pageQuery
}

type activeQuery struct {
	Minutes int `json:"minutes" validate:"min=1,max=1440"`
}

// Summary returns totals, the per-type breakdown and the top pages.
func Summary(svc *analytics.Service, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		sum, err := svc.Summary(ctx)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, sum)
	}
}

// Trends returns a page of the daily series. The total is the number of days.
func Trends(svc *analytics.Service, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var q trendsQuery
		var err error
		if q.Days, err = queryInt(ctx, "days", defaultTrendDays); err != nil {
			writeError(ctx, log, err)
			return
		}
		if q.pageQuery, err = parsePageQuery(ctx); err != nil {
			writeError(ctx, log, err)
			return
		}
		if err := validateStruct(q); err != nil {
			writeError(ctx, log, err)
			return
		}

		page, err := analytics.Paginate(ctx, q.Page, q.Limit, svc.TrendsFetch(q.Days))
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, page)
	}
}

// Active reports events and distinct users over the last minutes minutes.
func Active(svc *analytics.Service, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var q activeQuery
		var err error
		if q.Minutes, err = queryInt(ctx, "minutes", defaultActiveMinutes); err != nil {
			writeError(ctx, log, err)
			return
		}
		if err := validateStruct(q); err != nil {
			writeError(ctx, log, err)
			return
		}

		since := time.Now().UTC().Add(-time.Duration(q.Minutes) * time.Minute)
		events, users, err := svc.ActiveSince(ctx, since)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"minutes":      q.Minutes,
			"since":        formatTimestamp(since),
			"events":       events,
			"active_users": users,
		})
	}
}

package handlers

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"activityinsight/internal/analytics"
	"activityinsight/internal/config"
)

type overviewQuery struct {
	RecentLimit int `json:"recent_limit" validate:"min=1,max=100"`
}

// Overview serves the dashboard: totals, active users, recent activity and
// the top pages in one response.
func Overview(svc *analytics.Service, cfg *config.Config, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var q overviewQuery
		var err error
		if q.RecentLimit, err = queryInt(ctx, "recent_limit", cfg.DefaultRecentLimit); err != nil {
			writeError(ctx, log, err)
			return
		}
		if err := validateStruct(q); err != nil {
			writeError(ctx, log, err)
			return
		}

		ov, err := svc.Overview(ctx, q.RecentLimit)
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, ov)
	}
}

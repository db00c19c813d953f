package handlers

import (
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"activityinsight/internal/analytics"
)

// ActivityDetail returns a single activity by id.
func ActivityDetail(svc *analytics.Service, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, err := strconv.ParseUint(pathParam(ctx, "id"), 10, 0)
		if err != nil || id == 0 {
			writeError(ctx, log, invalid("id", "must be a positive integer"))
			return
		}

		act, err := svc.Get(ctx, uint(id))
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, act)
	}
}

// UserHistory lists one user's activities, newest first.
func UserHistory(svc *analytics.Service, log *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID := pathParam(ctx, "user_id")
		if userID == "" {
			writeError(ctx, log, invalid("user_id", "is required"))
			return
		}
		q, err := parsePageQuery(ctx)
		if err != nil {
			writeError(ctx, log, err)
			return
		}

		page, err := analytics.Paginate(ctx, q.Page, q.Limit, svc.History(userID))
		if err != nil {
			writeError(ctx, log, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, page)
	}
}

package handlers

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"activityinsight/internal/analytics"
	"activityinsight/internal/config"
	appmw "activityinsight/internal/http/middleware"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Service *analytics.Service
	Config  *config.Config
	Metrics *Metrics
	Log     *zap.Logger
}

// NewRouter registers every route and wraps the router in the global
// middleware chain: request id, then request logger, then panic recovery.
func NewRouter(d Deps) fasthttp.RequestHandler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := d.Metrics
	svc := d.Service

	r := router.New()
	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		errResponse(ctx, fasthttp.StatusNotFound, "not_found", "route not found")
	}
	r.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		errResponse(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}

	r.GET("/health", Health(d.Config))
	r.GET("/healthz", Healthz)
	r.GET("/metrics", m.Handler())

	r.POST("/activity/track", m.Instrument("/activity/track", Track(svc, m, log)))
	r.GET("/activity/user/{user_id}", m.Instrument("/activity/user/{user_id}", UserHistory(svc, log)))
	// Only numeric ids match, so /activity/track on GET is a 405.
	r.GET("/activity/{id:[0-9]+}", m.Instrument("/activity/{id}", ActivityDetail(svc, log)))

	r.GET("/analytics/summary", m.Instrument("/analytics/summary", Summary(svc, log)))
	r.GET("/analytics/trends", m.Instrument("/analytics/trends", Trends(svc, log)))
	r.GET("/analytics/active", m.Instrument("/analytics/active", Active(svc, log)))

	r.GET("/dashboard/overview", m.Instrument("/dashboard/overview", Overview(svc, d.Config, log)))

	return appmw.Chain(r.Handler,
		appmw.RequestID,
		appmw.RequestLogger(log),
		appmw.Recover(log),
	)
}

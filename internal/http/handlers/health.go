package handlers

import (
	"time"

	"github.com/valyala/fasthttp"

	"activityinsight/internal/config"
)

func Health(cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"status":  "ok",
			"message": cfg.HealthMessage,
			"time":    formatTimestamp(time.Now()),
		})
	}
}

// Healthz is the plain-text liveness probe.
func Healthz(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString("ok")
}

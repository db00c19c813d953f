package middleware

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	httpctx "activityinsight/internal/http/ctx"
)

// RequestLogger logs method, path, status and duration of every request.
// 5xx responses are logged at error level and 4xx at warn.
func RequestLogger(log *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)

			status := ctx.Response.StatusCode()
			fields := []zap.Field{
				zap.ByteString("method", ctx.Method()),
				zap.ByteString("path", ctx.Path()),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("ip", ctx.RemoteIP().String()),
			}
			if route, ok := httpctx.RouteFromCtx(ctx); ok {
				fields = append(fields, zap.String("route", route))
			}
			if id, ok := httpctx.RequestIDFromCtx(ctx); ok {
				fields = append(fields, zap.String("request_id", id))
			}
			if q := ctx.QueryArgs().QueryString(); len(q) > 0 {
				fields = append(fields, zap.ByteString("query", q))
			}

			switch {
			case status >= 500:
				log.Error("http request", fields...)
			case status >= 400:
				log.Warn("http request", fields...)
			default:
				log.Info("http request", fields...)
			}
		}
	}
}

package middleware

import (
	"fmt"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	httpctx "activityinsight/internal/http/ctx"
)

const internalErrorBody = `{"error":"internal_error","message":"an unexpected error occurred"}`

// Recover turns a panicking handler into a 500 with the standard error body.
func Recover(log *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				id, _ := httpctx.RequestIDFromCtx(ctx)
				log.Error("panic recovered",
					zap.String("panic", fmt.Sprint(rec)),
					zap.ByteString("method", ctx.Method()),
					zap.ByteString("path", ctx.Path()),
					zap.String("request_id", id),
					zap.Stack("stack"),
				)

				ctx.Response.ResetBody()
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetContentType("application/json")
				ctx.SetBodyString(internalErrorBody)
			}()
			next(ctx)
		}
	}
}

// Chain applies middlewares so that the first one listed runs outermost.
func Chain(h fasthttp.RequestHandler, mws ...func(fasthttp.RequestHandler) fasthttp.RequestHandler) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

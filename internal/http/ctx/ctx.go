package ctx

import (
	"github.com/valyala/fasthttp"
)

const (
	RequestIDKey = "requestID"
	RouteKey     = "route"

	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
)

func SetRequestID(ctx *fasthttp.RequestCtx, id string) {
	ctx.SetUserValue(RequestIDKey, id)
}

func RequestIDFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	v := ctx.UserValue(RequestIDKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SetRoute records the matched route pattern, so logs and metrics do not
// fan out per user id.
func SetRoute(ctx *fasthttp.RequestCtx, route string) {
	ctx.SetUserValue(RouteKey, route)
}

func RouteFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	v := ctx.UserValue(RouteKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

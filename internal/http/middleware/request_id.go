package middleware

import (
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	httpctx "activityinsight/internal/http/ctx"
)

// maxRequestIDLen bounds inbound ids so a client cannot bloat every log line.
const maxRequestIDLen = 128

// RequestID tags every request with an id. An inbound X-Request-ID is kept,
// otherwise a new UUID is minted. The id is echoed on the response.
func RequestID(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id := strings.TrimSpace(string(ctx.Request.Header.Peek(httpctx.RequestIDHeader)))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		httpctx.SetRequestID(ctx, id)
		ctx.Response.Header.Set(httpctx.RequestIDHeader, id)
		next(ctx)
	}
}

package handlers

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"activityinsight/internal/analytics"
	"activityinsight/internal/config"
	"activityinsight/internal/db"
	"activityinsight/internal/db/dbtest"
	httpctx "activityinsight/internal/http/ctx"
	appmw "activityinsight/internal/http/middleware"
)

type testServer struct {
	handler fasthttp.RequestHandler
	gdb     *gorm.DB
	metrics *Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb := dbtest.Open(t)
	store := db.NewActivityStore(gdb)
	m := NewMetrics()
	cfg := &config.Config{DefaultRecentLimit: 10, HealthMessage: "activityinsight is up"}
	h := NewRouter(Deps{
		Service: analytics.NewService(store, nil, nil),
		Config:  cfg,
		Metrics: m,
	})
	return &testServer{handler: h, gdb: gdb, metrics: m}
}

func (s *testServer) do(method, uri, body string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	s.handler(ctx)
	return ctx
}

func decode(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out), string(ctx.Response.Body()))
	return out
}

func (s *testServer) track(t *testing.T, body string) map[string]any {
	t.Helper()
	ctx := s.do(fasthttp.MethodPost, "/activity/track", body)
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	return decode(t, ctx)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	ctx := s.do(fasthttp.MethodGet, "/health", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := decode(t, ctx)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "activityinsight is up", body["message"])
	ts, _ := body["time"].(string)
	assert.True(t, strings.HasSuffix(ts, "Z"), ts)
	_, err := time.Parse(time.RFC3339, ts)
	assert.NoError(t, err)

	ctx = s.do(fasthttp.MethodGet, "/healthz", "")
	assert.Equal(t, "ok", string(ctx.Response.Body()))
}

func TestRequestIDIsEchoedOrMinted(t *testing.T) {
	s := newTestServer(t)

	ctx := s.do(fasthttp.MethodGet, "/healthz", "")
	assert.Len(t, string(ctx.Response.Header.Peek(httpctx.RequestIDHeader)), 36)

	var req fasthttp.Request
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI("/healthz")
	req.Header.Set(httpctx.RequestIDHeader, "abc-123")
	ctx = &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	s.handler(ctx)
	assert.Equal(t, "abc-123", string(ctx.Response.Header.Peek(httpctx.RequestIDHeader)))
}

func TestTrack(t *testing.T) {
	s := newTestServer(t)

	body := s.track(t, `{"user_id":"user_123","event_type":"page_view","page":"/home","metadata":{"action":"click","x":10}}`)
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "user_123", body["user_id"])
	assert.Equal(t, "page_view", body["event_type"])
	assert.Equal(t, "/home", body["page"])
	assert.Equal(t, map[string]any{"action": "click", "x": float64(10)}, body["metadata"])
	assert.NotEmpty(t, body["created_at"])

	body = s.track(t, `{"user_id":"u","event_type":"click","payload":{"a":[1,2]},"timestamp":"2024-01-02T03:04:05Z"}`)
	assert.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, body["metadata"])
	assert.Equal(t, "2024-01-02T03:04:05Z", body["created_at"])
	assert.Nil(t, body["page"])

	body = s.track(t, `{"user_id":"u","event_type":"click"}`)
	assert.Nil(t, body["metadata"])
}

func TestTrackAcceptsTimestampWithoutOffset(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"2024-07-01T10:00:00":       "2024-07-01T10:00:00Z",
		"2024-07-01T10:00:00.25":    "2024-07-01T10:00:00.25Z",
		"2024-07-01 10:00:00":       "2024-07-01T10:00:00Z",
		"2024-07-01T12:00:00+02:00": "2024-07-01T10:00:00Z",
	}
	for in, want := range cases {
		body := s.track(t, `{"user_id":"u","event_type":"click","timestamp":"`+in+`"}`)
		assert.Equal(t, want, body["created_at"], in)
	}

	body := s.track(t, `{"user_id":"u","event_type":"click","timestamp":null}`)
	assert.NotEmpty(t, body["created_at"])
}

func TestTrackKeepsLargeIntegersExact(t *testing.T) {
	s := newTestServer(t)

	ctx := s.do(fasthttp.MethodPost, "/activity/track", `{"user_id":"u","event_type":"order","metadata":{"order_id":9007199254740993,"price":12.50}}`)
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	assert.Contains(t, string(ctx.Response.Body()), `"order_id":9007199254740993`)

	var row db.ActivityEvent
	require.NoError(t, s.gdb.First(&row).Error)
	require.NotNil(t, row.Payload)
	assert.Contains(t, *row.Payload, `"order_id":9007199254740993`)

	ctx = s.do(fasthttp.MethodGet, "/activity/"+strconv.Itoa(int(row.ID)), "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `"order_id":9007199254740993`)
}

func TestTrackValidation(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"invalid json":      `{"user_id":`,
		"missing user":      `{"event_type":"click"}`,
		"blank user":        `{"user_id":"   ","event_type":"click"}`,
		"missing type":      `{"user_id":"u"}`,
		"bad timestamp":     `{"user_id":"u","event_type":"click","timestamp":"yesterday"}`,
		"user id too long":  `{"user_id":"` + strings.Repeat("x", 256) + `","event_type":"click"}`,
		"wrong type for id": `{"user_id":42,"event_type":"click"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := s.do(fasthttp.MethodPost, "/activity/track", payload)
			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			assert.Equal(t, "validation_error", decode(t, ctx)["error"])
		})
	}

	for _, ts := range []string{`"yesterday"`, `"2024-13-01T00:00:00"`, `1719828000`} {
		ctx := s.do(fasthttp.MethodPost, "/activity/track", `{"user_id":"u","event_type":"click","timestamp":`+ts+`}`)
		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode(), ts)
		msg, _ := decode(t, ctx)["message"].(string)
		assert.True(t, strings.HasPrefix(msg, "timestamp: "), msg)
	}

	var count int64
	require.NoError(t, s.gdb.Model(&db.ActivityEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestActivityDetail(t *testing.T) {
	s := newTestServer(t)
	created := s.track(t, `{"user_id":"u","event_type":"click","metadata":{"k":"v"}}`)
	id := strconv.Itoa(int(created["id"].(float64)))

	ctx := s.do(fasthttp.MethodGet, "/activity/"+id, "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, created, decode(t, ctx))

	ctx = s.do(fasthttp.MethodGet, "/activity/999", "")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Equal(t, "not_found", decode(t, ctx)["error"])

	ctx = s.do(fasthttp.MethodGet, "/activity/abc", "")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	ctx = s.do(fasthttp.MethodGet, "/activity/track", "")
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
	assert.Equal(t, "method_not_allowed", decode(t, ctx)["error"])

	ctx = s.do(fasthttp.MethodGet, "/activity/0", "")
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestMalformedStoredPayloadFallsBackToRaw(t *testing.T) {
	s := newTestServer(t)
	bad := "not-json"
	row := db.ActivityEvent{UserID: "u", EventType: "click", Payload: &bad, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.gdb.Create(&row).Error)

	ctx := s.do(fasthttp.MethodGet, "/activity/"+strconv.Itoa(int(row.ID)), "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, map[string]any{"raw": "not-json"}, decode(t, ctx)["metadata"])
}

func TestUserHistory(t *testing.T) {
	s := newTestServer(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		ts := base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339)
		s.track(t, `{"user_id":"alice","event_type":"view","timestamp":"`+ts+`"}`)
	}
	s.track(t, `{"user_id":"bob","event_type":"view"}`)

	ctx := s.do(fasthttp.MethodGet, "/activity/user/alice?page=2&limit=10", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := decode(t, ctx)
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(10), body["limit"])
	assert.Equal(t, float64(25), body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 10)
	first := items[0].(map[string]any)
	assert.Equal(t, base.Add(14*time.Minute).Format(time.RFC3339), first["created_at"])

	ctx = s.do(fasthttp.MethodGet, "/activity/user/alice", "")
	body = decode(t, ctx)
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(20), body["limit"])
	assert.Len(t, body["items"], 20)

	ctx = s.do(fasthttp.MethodGet, "/activity/user/nobody", "")
	body = decode(t, ctx)
	assert.Equal(t, float64(0), body["total"])
	assert.Equal(t, []any{}, body["items"])

	for _, q := range []string{"page=0", "limit=0", "limit=101", "limit=abc", "page=-1"} {
		ctx = s.do(fasthttp.MethodGet, "/activity/user/alice?"+q, "")
		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode(), q)
	}
}

func TestPageOffsetOverflowIsRejected(t *testing.T) {
	s := newTestServer(t)
	s.track(t, `{"user_id":"a","event_type":"view"}`)

	for _, uri := range []string{
		"/activity/user/a?limit=16&page=1152921504606846977",
		"/analytics/trends?days=3&limit=16&page=1152921504606846977",
		"/activity/user/a?limit=2&page=9223372036854775807",
	} {
		ctx := s.do(fasthttp.MethodGet, uri, "")
		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode(), uri)
		assert.Equal(t, "page: is out of range", decode(t, ctx)["message"], uri)
	}

	// The largest page whose offset still fits is accepted and simply empty.
	for _, uri := range []string{
		"/activity/user/a?limit=1&page=9223372036854775807",
		"/analytics/trends?days=3&limit=16&page=576460752303423488",
	} {
		ctx := s.do(fasthttp.MethodGet, uri, "")
		require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
		assert.Equal(t, []any{}, decode(t, ctx)["items"], uri)
	}
}

func TestSummary(t *testing.T) {
	s := newTestServer(t)
	s.track(t, `{"user_id":"a","event_type":"view","page":"/home"}`)
	s.track(t, `{"user_id":"a","event_type":"click"}`)
	s.track(t, `{"user_id":"b","event_type":"view","page":"/home"}`)

	ctx := s.do(fasthttp.MethodGet, "/analytics/summary", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{
		"total_activities": 3,
		"unique_users": 2,
		"by_event_type": {"view": 2, "click": 1},
		"top_pages": [{"page": "/home", "count": 2}]
	}`, string(ctx.Response.Body()))
}

func TestTrends(t *testing.T) {
	s := newTestServer(t)
	s.track(t, `{"user_id":"a","event_type":"view"}`)
	s.track(t, `{"user_id":"b","event_type":"view"}`)

	ctx := s.do(fasthttp.MethodGet, "/analytics/trends", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := decode(t, ctx)
	assert.Equal(t, float64(14), body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 14)
	last := items[13].(map[string]any)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), last["date"])
	assert.Equal(t, float64(2), last["count"])

	ctx = s.do(fasthttp.MethodGet, "/analytics/trends?days=14&page=2&limit=10", "")
	body = decode(t, ctx)
	assert.Equal(t, float64(14), body["total"])
	assert.Len(t, body["items"], 4)

	for _, q := range []string{"days=0", "days=91", "days=x", "limit=500"} {
		ctx = s.do(fasthttp.MethodGet, "/analytics/trends?"+q, "")
		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode(), q)
	}
}

func TestOverview(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 12; i++ {
		s.track(t, `{"user_id":"u`+strconv.Itoa(i%3)+`","event_type":"view","page":"/p"}`)
	}

	ctx := s.do(fasthttp.MethodGet, "/dashboard/overview", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := decode(t, ctx)
	assert.Equal(t, float64(12), body["total_activities"])
	assert.Equal(t, float64(3), body["active_users_last_15m"])
	assert.Len(t, body["recent_activities"], 10)
	assert.Equal(t, []any{map[string]any{"page": "/p", "count": float64(12)}}, body["top_pages"])

	ctx = s.do(fasthttp.MethodGet, "/dashboard/overview?recent_limit=3", "")
	assert.Len(t, decode(t, ctx)["recent_activities"], 3)

	ctx = s.do(fasthttp.MethodGet, "/dashboard/overview?recent_limit=0", "")
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestActive(t *testing.T) {
	s := newTestServer(t)
	s.track(t, `{"user_id":"a","event_type":"view"}`)
	s.track(t, `{"user_id":"a","event_type":"view"}`)
	s.track(t, `{"user_id":"b","event_type":"view","timestamp":"2020-01-01T00:00:00Z"}`)

	ctx := s.do(fasthttp.MethodGet, "/analytics/active?minutes=30", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := decode(t, ctx)
	assert.Equal(t, float64(30), body["minutes"])
	assert.Equal(t, float64(2), body["events"])
	assert.Equal(t, float64(1), body["active_users"])

	ctx = s.do(fasthttp.MethodGet, "/analytics/active?minutes=0", "")
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestStoreFailureIsGeneric500(t *testing.T) {
	s := newTestServer(t)
	sqlDB, err := s.gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	for _, uri := range []string{"/analytics/summary", "/dashboard/overview", "/analytics/trends", "/activity/user/u"} {
		ctx := s.do(fasthttp.MethodGet, uri, "")
		assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode(), uri)
		body := decode(t, ctx)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body["message"], "sql")
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	ctx := s.do(fasthttp.MethodGet, "/nope", "")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Equal(t, "not_found", decode(t, ctx)["error"])
}

func TestRecoverReturnsJSON500(t *testing.T) {
	h := appmw.Chain(func(ctx *fasthttp.RequestCtx) { panic("boom") }, appmw.RequestID, appmw.Recover(zap.NewNop()))

	var req fasthttp.Request
	req.SetRequestURI("/")
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	h(ctx)

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.Equal(t, "internal_error", decode(t, ctx)["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.track(t, `{"user_id":"a","event_type":"click"}`)
	s.track(t, `{"user_id":"a","event_type":"click"}`)
	s.metrics.SinkError("kafka", nil)

	ctx := s.do(fasthttp.MethodGet, "/metrics", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	text := string(ctx.Response.Body())
	assert.Contains(t, text, `activityinsight_tracked_events_total{event_type="click"} 2`)
	assert.Contains(t, text, `activityinsight_sink_errors_total{sink="kafka"} 1`)
	assert.Contains(t, text, `activityinsight_http_request_duration_seconds_count{method="POST",route="/activity/track"} 2`)

	families, err := s.metrics.registry.Gather()
	require.NoError(t, err)
	byName := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	require.Contains(t, byName, "activityinsight_tracked_events_total")
	assert.Equal(t, dto.MetricType_COUNTER, byName["activityinsight_tracked_events_total"].GetType())
	assert.Contains(t, byName, "go_goroutines")
}

package middleware

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type requestCounter struct {
	seen []string
}

func (r *requestCounter) ObserveRequest(method, status string) {
	r.seen = append(r.seen, method+" "+status)
}

func TestAccessLog_RecordsRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	counter := &requestCounter{}

	handler := AccessLog(zap.New(core), nil, counter)(func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(http.StatusTeapot)
		ctx.SetBodyString("short and stout")
	})

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(http.MethodPost)
	ctx.Request.SetRequestURI("/admin/start")
	ctx.Request.Header.Set("X-Request-ID", "abc")

	handler(&ctx)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "abc", fields["request_id"])
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/admin/start", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.Contains(t, fields, "latency")

	assert.Equal(t, "abc", string(ctx.Response.Header.Peek("X-Request-ID")))
	assert.Equal(t, []string{"POST 418"}, counter.seen)
}

func TestAccessLog_AssignsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := AccessLog(zap.New(core), nil, nil)(func(ctx *fasthttp.RequestCtx) {})

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/")
	handler(&ctx)

	reqID := string(ctx.Response.Header.Peek("X-Request-ID"))
	assert.NotEmpty(t, reqID)
	assert.Equal(t, reqID, logs.All()[0].ContextMap()["request_id"])
}

func TestSecureHeaders(t *testing.T) {
	var ctx fasthttp.RequestCtx
	SecureHeaders(func(ctx *fasthttp.RequestCtx) {})(&ctx)

	assert.Equal(t, "nosniff", string(ctx.Response.Header.Peek("X-Content-Type-Options")))
	assert.Equal(t, "SAMEORIGIN", string(ctx.Response.Header.Peek("X-Frame-Options")))
}

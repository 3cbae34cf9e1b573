package middleware

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botgateway/pkg/httpcontext"
)

// RequestObserver counts inbound requests.
type RequestObserver interface {
	ObserveRequest(method, status string)
}

// AccessLog records one line per request after the handler ran. It never
// touches the response, so a broken sink cannot fail a request.
func AccessLog(sink *zap.Logger, console *zap.Logger, observer RequestObserver) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if sink == nil {
		sink = zap.NewNop()
	}
	if console == nil {
		console = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			started := time.Now()
			reqID := httpcontext.RequestID(ctx)

			next(ctx)

			latency := time.Since(started)
			method := string(ctx.Method())
			status := ctx.Response.StatusCode()

			sink.Info("request",
				zap.String("request_id", reqID),
				zap.String("method", method),
				zap.String("path", string(ctx.Path())),
				zap.Int("status", status),
				zap.Duration("latency", latency),
				zap.Time("received_at", started.UTC()),
				zap.String("remote_addr", ctx.RemoteIP().String()),
				zap.String("user_agent", string(ctx.UserAgent())),
				zap.Int("bytes", len(ctx.Response.Body())),
			)
			console.Debug("request",
				zap.String("request_id", reqID),
				zap.String("method", method),
				zap.String("path", string(ctx.Path())),
				zap.Int("status", status),
				zap.Duration("latency", latency),
			)

			if observer != nil {
				observer.ObserveRequest(method, strconv.Itoa(status))
			}
		}
	}
}

// SecureHeaders sets the baseline hardening headers on every response.
func SecureHeaders(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.Set("X-Content-Type-Options", "nosniff")
		ctx.Response.Header.Set("X-Frame-Options", "SAMEORIGIN")
		ctx.Response.Header.Set("Referrer-Policy", "no-referrer")
		ctx.Response.Header.Set("X-DNS-Prefetch-Control", "off")
		next(ctx)
	}
}

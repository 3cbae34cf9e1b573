package router

import (
	"fmt"
	"net/http"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/botgateway/api/handler"
	"github.com/fastygo/botgateway/api/transport"
)

type Handlers struct {
	Health *apiHandler.HealthHandler
	Admin  *apiHandler.AdminHandler
	Ticks  *apiHandler.TickHandler
}

type Options struct {
	Metrics fasthttp.RequestHandler
	Pprof   bool
	Logger  *zap.Logger
}

func New(handlers Handlers, opts Options) *router.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := router.New()

	r.GET("/", handlers.Health.Root)
	r.GET("/healthz", handlers.Health.Liveness)

	r.POST("/admin/start", handlers.Admin.Start)
	r.POST("/admin/stop", handlers.Admin.Stop)
	r.GET("/admin/status", handlers.Admin.Status)
	r.GET("/admin/users", handlers.Admin.Users)
	if handlers.Ticks != nil {
		r.GET("/admin/ticks", handlers.Ticks.List)
	}

	if opts.Metrics != nil {
		r.GET("/metrics", opts.Metrics)
	}
	if opts.Pprof {
		r.GET("/debug/pprof/{profile:*}", pprofhandler.PprofHandler)
	}

	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		writeError(ctx, http.StatusNotFound, "route not found")
	}
	r.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		writeError(ctx, http.StatusMethodNotAllowed, "method not allowed")
	}
	r.PanicHandler = func(ctx *fasthttp.RequestCtx, rcv interface{}) {
		logger.Error("handler panicked",
			zap.String("path", string(ctx.Path())),
			zap.String("panic", fmt.Sprint(rcv)))
		writeError(ctx, http.StatusInternalServerError, "internal error")
	}

	return r
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.ResetBody()
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBodyString(transport.NewError(message).String())
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botgateway/api/transport"
	"github.com/fastygo/botgateway/domain"
	"github.com/fastygo/botgateway/pkg/httpcontext"
)

const rootMessage = "Telegram Journal Bot Server"

// StatusChecker produces a fresh DownstreamStatus per call. err is non-nil
// only when the bot service could not be polled.
type StatusChecker interface {
	Check(ctx context.Context) (domain.DownstreamStatus, error)
}

type HealthHandler struct {
	baseHandler
	monitor StatusChecker
	started time.Time
}

func NewHealthHandler(mon StatusChecker, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		started:     time.Now(),
	}
}

// @Summary Gateway and bot status
// @Tags health
// @Router / [get]
func (h *HealthHandler) Root(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	botStatus, err := h.monitor.Check(stdCtx)
	if err != nil {
		h.respondJSON(ctx, http.StatusInternalServerError, transport.RootStatus{
			Status:    transport.StatusError,
			Message:   pollFailureMessage(err),
			BotStatus: botStatus,
		})
		return
	}

	h.respondJSON(ctx, http.StatusOK, transport.RootStatus{
		Status:    transport.StatusOK,
		Message:   rootMessage,
		BotStatus: botStatus,
	})
}

func pollFailureMessage(err error) string {
	switch domain.CodeOf(err) {
	case domain.ErrCodeNetworkUnreachable, domain.ErrCodeTimeout:
		return "could not connect to bot service"
	default:
		return "could not check bot status"
	}
}

// @Summary Gateway liveness, without touching the bot service
// @Tags health
// @Router /healthz [get]
func (h *HealthHandler) Liveness(ctx *fasthttp.RequestCtx) {
	h.respondJSON(ctx, http.StatusOK, map[string]interface{}{
		"status":    transport.StatusOK,
		"uptime":    time.Since(h.started).Seconds(),
		"timestamp": time.Now().UTC(),
	})
}

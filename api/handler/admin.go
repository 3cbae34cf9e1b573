package handler

import (
	"context"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botgateway/domain"
	"github.com/fastygo/botgateway/pkg/httpcontext"
)

// Gateway executes admin commands against the bot service.
type Gateway interface {
	Execute(ctx context.Context, cmd domain.AdminCommand) (domain.Result, error)
}

type AdminHandler struct {
	baseHandler
	gateway Gateway
}

func NewAdminHandler(gateway Gateway, adapter *httpcontext.Adapter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		baseHandler: newBaseHandler(adapter, logger),
		gateway:     gateway,
	}
}

// @Summary Start the bot
// @Tags admin
// @Router /admin/start [post]
func (h *AdminHandler) Start(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, domain.CommandStart)
}

// @Summary Stop the bot
// @Tags admin
// @Router /admin/stop [post]
func (h *AdminHandler) Stop(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, domain.CommandStop)
}

// @Summary Bot status
// @Tags admin
// @Router /admin/status [get]
func (h *AdminHandler) Status(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, domain.CommandStatus)
}

// @Summary List bot users
// @Tags admin
// @Router /admin/users [get]
func (h *AdminHandler) Users(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, domain.CommandListUsers)
}

func (h *AdminHandler) execute(ctx *fasthttp.RequestCtx, cmd domain.AdminCommand) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.gateway.Execute(stdCtx, cmd)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondRaw(ctx, res.StatusCode, res.Body)
}

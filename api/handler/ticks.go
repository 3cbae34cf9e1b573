package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botgateway/api/transport"
	"github.com/fastygo/botgateway/domain"
	"github.com/fastygo/botgateway/pkg/httpcontext"
	"github.com/fastygo/botgateway/repository"
)

const maxTickLimit = 500

type TickHandler struct {
	baseHandler
	repo repository.TickRepository
}

func NewTickHandler(repo repository.TickRepository, adapter *httpcontext.Adapter, logger *zap.Logger) *TickHandler {
	return &TickHandler{
		baseHandler: newBaseHandler(adapter, logger),
		repo:        repo,
	}
}

// @Summary Recent health scheduler ticks
// @Tags admin
// @Router /admin/ticks [get]
func (h *TickHandler) List(ctx *fasthttp.RequestCtx) {
	filter := repository.TickFilter{
		Limit: parseInt(string(ctx.QueryArgs().Peek("limit")), 50),
	}
	if filter.Limit <= 0 || filter.Limit > maxTickLimit {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "limit must be between 1 and 500"))
		return
	}
	if since := string(ctx.QueryArgs().Peek("since")); since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "since must be RFC3339", err))
			return
		}
		filter.Since = parsed
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ticks, err := h.repo.List(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeInternal, "Failed to list ticks", err))
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.TickList{Ticks: ticks, Count: len(ticks)})
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

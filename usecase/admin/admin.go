package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/fastygo/botgateway/domain"
	"github.com/fastygo/botgateway/internal/infrastructure/downstream"
	appLogger "github.com/fastygo/botgateway/pkg/logger"
	"github.com/fastygo/botgateway/usecase"
)

// Caller issues a bounded downstream request.
type Caller interface {
	Call(ctx context.Context, ep domain.Endpoint) (downstream.Response, error)
}

// StatusChecker produces a fresh DownstreamStatus per call. err is non-nil
// only when the bot service could not be polled.
type StatusChecker interface {
	Check(ctx context.Context) (domain.DownstreamStatus, error)
}

// UseCase is the admin gateway: it turns operator commands into downstream calls.
// Commands are independent; the bot service owns its own consistency.
type UseCase struct {
	caller     Caller
	monitor    StatusChecker
	dispatcher *usecase.Dispatcher
	logger     *zap.Logger
}

func New(caller Caller, monitor StatusChecker, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		caller:     caller,
		monitor:    monitor,
		dispatcher: usecase.NewDispatcher(),
		logger:     logger,
	}

	for _, cmd := range domain.Commands() {
		if cmd == domain.CommandStatus {
			uc.dispatcher.Register(cmd, uc.status)
			continue
		}
		uc.dispatcher.Register(cmd, uc.relay(cmd))
	}

	return uc
}

// Execute runs one admin command. Downstream failures come back as a
// *domain.Error whose message names the failed action.
func (uc *UseCase) Execute(ctx context.Context, cmd domain.AdminCommand) (domain.Result, error) {
	log := appLogger.WithRequestID(ctx, uc.logger).With(zap.String("command", string(cmd)))

	res, err := uc.dispatcher.Execute(ctx, cmd)
	if err != nil {
		if domain.IsDownstreamFailure(err) {
			log.Warn("admin command failed", zap.String("code", string(domain.CodeOf(err))), zap.Error(err))
		} else {
			log.Error("admin command failed", zap.Error(err))
		}
		return domain.Result{}, err
	}
	log.Info("admin command relayed", zap.Int("status", res.StatusCode))
	return res, nil
}

// Start asks the bot service to start.
func (uc *UseCase) Start(ctx context.Context) (domain.Result, error) {
	return uc.Execute(ctx, domain.CommandStart)
}

func (uc *UseCase) relay(cmd domain.AdminCommand) usecase.CommandHandler {
	ep, _ := cmd.Endpoint()
	return func(ctx context.Context) (domain.Result, error) {
		if uc.caller == nil {
			return domain.Result{}, domain.ErrNotConfigured
		}
		resp, err := uc.caller.Call(ctx, ep)
		if err != nil {
			return domain.Result{}, &domain.Error{
				Code:    domain.CodeOf(err),
				Message: "Failed to " + cmd.Verb(),
				Err:     err,
			}
		}
		return domain.Result{StatusCode: resp.StatusCode, Body: resp.Body}, nil
	}
}

func (uc *UseCase) status(ctx context.Context) (domain.Result, error) {
	if uc.monitor == nil {
		return domain.Result{}, domain.ErrNotConfigured
	}
	status, pollErr := uc.monitor.Check(ctx)
	body, err := json.Marshal(status)
	if err != nil {
		return domain.Result{}, domain.WrapError(domain.ErrCodeInternal, "Failed to get status", err)
	}

	code := http.StatusOK
	if pollErr != nil {
		code = http.StatusInternalServerError
	}
	return domain.Result{StatusCode: code, Body: body}, nil
}

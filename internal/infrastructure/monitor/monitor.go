package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/botgateway/domain"
	"github.com/fastygo/botgateway/internal/infrastructure/downstream"
	appLogger "github.com/fastygo/botgateway/pkg/logger"
)

// Caller is the downstream call wrapper the monitor polls through.
type Caller interface {
	Do(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (downstream.Response, error)
}

// Monitor polls the bot service status endpoint. Each CheckStatus is one call;
// nothing is cached between callers.
type Monitor struct {
	caller  Caller
	timeout time.Duration
	logger  *zap.Logger
}

func New(caller Caller, timeout time.Duration, logger *zap.Logger) *Monitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		caller:  caller,
		timeout: timeout,
		logger:  logger,
	}
}

// CheckStatus never fails: any downstream problem is folded into a
// DownstreamStatus with state "error".
func (m *Monitor) CheckStatus(ctx context.Context) domain.DownstreamStatus {
	status, _ := m.Check(ctx)
	return status
}

// Check polls once and always returns a usable DownstreamStatus. err is set
// only when the poll itself failed, which tells a bot reporting "error" apart
// from a bot that could not be reached.
func (m *Monitor) Check(ctx context.Context) (domain.DownstreamStatus, error) {
	status, err := m.Poll(ctx)
	if err != nil {
		appLogger.WithRequestID(ctx, m.logger).Warn("bot status check failed",
			zap.String("code", string(domain.CodeOf(err))), zap.Error(err))
		return domain.FailedStatus(err), err
	}
	return status, nil
}

// Poll returns the failure as a typed error instead of folding it.
func (m *Monitor) Poll(ctx context.Context) (domain.DownstreamStatus, error) {
	if m == nil || m.caller == nil {
		return domain.DownstreamStatus{}, domain.ErrNotConfigured
	}

	ep, _ := domain.CommandStatus.Endpoint()
	resp, err := m.caller.Do(ctx, ep, m.timeout)
	if err != nil {
		return domain.DownstreamStatus{}, err
	}
	return domain.ParseStatus(resp.Body)
}

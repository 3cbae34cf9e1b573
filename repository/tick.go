package repository

import (
	"context"
	"time"

	"github.com/fastygo/botgateway/domain"
)

type TickFilter struct {
	Limit int
	Since time.Time
}

// TickRepository persists the audit trail of health scheduler ticks.
type TickRepository interface {
	Append(ctx context.Context, report domain.TickReport) error
	List(ctx context.Context, filter TickFilter) ([]domain.TickReport, error)
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}

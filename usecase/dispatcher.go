package usecase

import (
	"context"
	"sync"

	"github.com/fastygo/botgateway/domain"
)

type CommandHandler func(ctx context.Context) (domain.Result, error)

// Dispatcher routes admin commands to their handlers.
type Dispatcher struct {
	handlers map[domain.AdminCommand]CommandHandler
	mu       sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[domain.AdminCommand]CommandHandler),
	}
}

func (d *Dispatcher) Register(cmd domain.AdminCommand, handler CommandHandler) {
	if handler == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[cmd] = handler
}

func (d *Dispatcher) Execute(ctx context.Context, cmd domain.AdminCommand) (domain.Result, error) {
	d.mu.RLock()
	handler, ok := d.handlers[cmd]
	d.mu.RUnlock()
	if !ok {
		return domain.Result{}, domain.WrapError(domain.ErrCodeInvalid, string(cmd), domain.ErrUnknownCommand)
	}
	return handler(ctx)
}

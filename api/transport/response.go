package transport

import (
	"encoding/json"

	"github.com/fastygo/botgateway/domain"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrorBody is the uniform failure payload returned by every endpoint.
type ErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewError returns an error body carrying message.
func NewError(message string) ErrorBody {
	if message == "" {
		message = "internal error"
	}
	return ErrorBody{Status: StatusError, Message: message}
}

// RootStatus is the payload of GET /.
type RootStatus struct {
	Status    string                  `json:"status"`
	Message   string                  `json:"message"`
	BotStatus domain.DownstreamStatus `json:"botStatus"`
}

// TickList is the payload of GET /admin/ticks.
type TickList struct {
	Ticks []domain.TickReport `json:"ticks"`
	Count int                 `json:"count"`
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e ErrorBody) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

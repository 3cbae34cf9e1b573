package domain

import (
	"encoding/json"
	"strings"
)

// State is the normalized condition of the downstream bot service.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
	StateUnknown State = "unknown"
)

// DownstreamStatus is the result of exactly one status poll. It is built fresh
// for every caller and never cached.
type DownstreamStatus struct {
	State    State           `json:"state"`
	Reported string          `json:"reported,omitempty"`
	Message  string          `json:"message"`
	Raw      json.RawMessage `json:"raw"`
}

// FailedStatus builds the uniform value returned when a poll cannot complete.
func FailedStatus(err error) DownstreamStatus {
	msg := "could not connect to bot service"
	if err != nil {
		msg = err.Error()
	}
	return DownstreamStatus{
		State:   StateError,
		Message: msg,
		Raw:     json.RawMessage("null"),
	}
}

type statusBody struct {
	Status  *string `json:"status"`
	State   *string `json:"state"`
	Message string  `json:"message"`
}

// ParseStatus decodes a downstream /status body. The bot reports its state under
// "status"; "state" is accepted as a fallback.
func ParseStatus(body []byte) (DownstreamStatus, error) {
	var parsed statusBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return DownstreamStatus{}, WrapError(ErrCodeMalformedResponse, "malformed status body", err)
	}

	var reported string
	switch {
	case parsed.Status != nil:
		reported = *parsed.Status
	case parsed.State != nil:
		reported = *parsed.State
	default:
		return DownstreamStatus{}, NewError(ErrCodeMalformedResponse, "status body has no status field")
	}

	raw := make(json.RawMessage, len(body))
	copy(raw, body)

	return DownstreamStatus{
		State:    normalizeState(reported),
		Reported: reported,
		Message:  parsed.Message,
		Raw:      raw,
	}, nil
}

func normalizeState(reported string) State {
	switch State(strings.ToLower(strings.TrimSpace(reported))) {
	case StateRunning:
		return StateRunning
	case StateStopped:
		return StateStopped
	case StateError:
		return StateError
	default:
		return StateUnknown
	}
}

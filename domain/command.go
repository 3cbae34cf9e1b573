package domain

import "net/http"

// AdminCommand is an operator action forwarded to the downstream service.
type AdminCommand string

const (
	CommandStart     AdminCommand = "start"
	CommandStop      AdminCommand = "stop"
	CommandStatus    AdminCommand = "status"
	CommandListUsers AdminCommand = "listUsers"
)

// Endpoint is the downstream verb and path a command maps to.
type Endpoint struct {
	Method string
	Path   string
}

var commandEndpoints = map[AdminCommand]Endpoint{
	CommandStart:     {Method: http.MethodPost, Path: "/start"},
	CommandStop:      {Method: http.MethodPost, Path: "/stop"},
	CommandStatus:    {Method: http.MethodGet, Path: "/status"},
	CommandListUsers: {Method: http.MethodGet, Path: "/users"},
}

// Endpoint returns the downstream endpoint for the command.
func (c AdminCommand) Endpoint() (Endpoint, bool) {
	ep, ok := commandEndpoints[c]
	return ep, ok
}

// Verb is the human word used in operator-facing error messages.
func (c AdminCommand) Verb() string {
	switch c {
	case CommandListUsers:
		return "get users"
	case CommandStatus:
		return "get status"
	default:
		return string(c) + " bot"
	}
}

// Commands lists every supported command.
func Commands() []AdminCommand {
	return []AdminCommand{CommandStart, CommandStop, CommandStatus, CommandListUsers}
}

// Result is a downstream response relayed to the operator unchanged.
type Result struct {
	StatusCode int
	Body       []byte
}

package types

import "fmt"

// DisconnectKind classifies why a connection ended.
type DisconnectKind int

const (
	DisconnectUnknown DisconnectKind = iota
	DisconnectLoggedOut
	DisconnectTransientNetwork
	DisconnectProtocolConflict
)

func (k DisconnectKind) String() string {
	switch k {
	case DisconnectLoggedOut:
		return "logged-out"
	case DisconnectTransientNetwork:
		return "transient-network"
	case DisconnectProtocolConflict:
		return "protocol-conflict"
	default:
		return "unknown"
	}
}

// DisconnectReason is the classified cause of a closed connection. Code
// carries the transport status code when one was reported.
type DisconnectReason struct {
	Kind DisconnectKind
	Code int
}

// Terminal reports whether the credentials can never be reused.
// LoggedOut and ProtocolConflict are terminal.
func (r DisconnectReason) Terminal() bool {
	return r.Kind == DisconnectLoggedOut || r.Kind == DisconnectProtocolConflict
}

// Retryable is the negation of Terminal.
func (r DisconnectReason) Retryable() bool { return !r.Terminal() }

func (r DisconnectReason) String() string {
	if r.Code != 0 {
		return fmt.Sprintf("%s(%d)", r.Kind, r.Code)
	}
	return r.Kind.String()
}

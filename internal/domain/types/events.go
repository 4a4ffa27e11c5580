package types

import "time"

// EventKind tags a transport event.
type EventKind int

const (
	// EventChallenge carries a fresh pairing challenge.
	EventChallenge EventKind = iota + 1
	// EventOpened reports the session is authenticated and usable.
	EventOpened
	// EventCredentials carries an incremental credential update.
	EventCredentials
	// EventClosed reports the connection ended. It is always the last
	// event on a connection.
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventChallenge:
		return "challenge"
	case EventOpened:
		return "opened"
	case EventCredentials:
		return "credentials"
	case EventClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Event is one item of a connection's ordered event stream. Only the
// fields relevant to Kind are set.
type Event struct {
	Kind EventKind
	At   time.Time

	Challenge PairingChallenge
	Account   AccountID
	Delta     CredentialDelta

	// Code is the transport status code of a close; zero when the
	// connection failed without one. Err is the underlying read error.
	Code int
	Err  error
}

// Frame is an outbound command on an open connection.
type Frame struct {
	Type    string
	Payload []byte
}

// ClientInfo describes this device to the remote service.
type ClientInfo struct {
	Name    string
	Browser string
	Version string
}

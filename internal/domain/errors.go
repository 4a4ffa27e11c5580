package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPairingTimeout means no human completed pairing in the window.
	ErrPairingTimeout = errors.New("domain: pairing timed out")
	// ErrNotRegistered means an operation needs a paired device.
	ErrNotRegistered = errors.New("domain: device is not registered")
	// ErrStoreLocked means another process owns the credential store.
	ErrStoreLocked = errors.New("domain: credential store is locked by another process")
	// ErrStoreUnreadable means the store holds committed material that
	// cannot be read, e.g. sealed with a different passphrase.
	ErrStoreUnreadable = errors.New("domain: credential store is unreadable")
	// ErrInvalidTransition is returned for a state change the connection
	// state machine does not allow.
	ErrInvalidTransition = errors.New("domain: invalid connection state transition")
	// ErrNotOpen is returned when sending on a connection that is not Open.
	ErrNotOpen = errors.New("domain: connection is not open")
)

// TransportError reports that reconnect attempts were exhausted.
type TransportError struct {
	Reason   DisconnectReason
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport: gave up after %d attempts (last reason %s)", e.Attempts, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// TerminalSessionError reports a disconnect after which the stored
// credentials can never be used again. They are already cleared when
// this error is returned.
type TerminalSessionError struct {
	Reason DisconnectReason
}

func (e *TerminalSessionError) Error() string {
	return "session: terminal disconnect: " + e.Reason.String()
}

// PersistenceError reports a credential store write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Hint returns the next step an operator should take after err, or an
// empty string when there is nothing specific to suggest.
func Hint(err error) string {
	var (
		terminal  *TerminalSessionError
		transport *TransportError
		persist   *PersistenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &terminal):
		switch terminal.Reason.Kind {
		case DisconnectLoggedOut:
			return "the device was unlinked from the account; run `devlink auth` to pair again"
		case DisconnectProtocolConflict:
			return "another session replaced this one; stop the other devlink instance, then run `devlink auth`"
		}
		return "run `devlink auth` to pair again"
	case errors.Is(err, ErrPairingTimeout):
		return "no device scanned the challenge in time; run `devlink auth` to get a new pairing challenge"
	case errors.Is(err, ErrNotRegistered):
		return "this device is not linked yet; run `devlink auth` first"
	case errors.Is(err, ErrStoreUnreadable):
		return "the credential store could not be read (wrong passphrase?); retry with the right --passphrase, or run `devlink reset --yes` to discard it"
	case errors.Is(err, context.Canceled):
		return "interrupted before finishing; run the same command again (`devlink auth` issues a new pairing challenge)"
	case errors.Is(err, ErrStoreLocked):
		return "another devlink process is using the store directory; stop it or pass a different --store"
	case errors.As(err, &transport):
		return "the relay could not be reached; check --relay and your network, then retry"
	case errors.As(err, &persist):
		return "credentials could not be written; check free space and permissions on the store directory"
	}
	return ""
}

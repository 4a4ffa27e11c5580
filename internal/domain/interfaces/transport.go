package interfaces

import (
	"context"

	domaintypes "devlink/internal/domain/types"
)

// Transport dials the remote service.
type Transport interface {
	Connect(ctx context.Context, creds domaintypes.Credentials) (Connection, error)
}

// Connection is one live link to the remote service. Events are delivered
// in order on a single channel which is closed after EventClosed.
type Connection interface {
	Events() <-chan domaintypes.Event
	Send(ctx context.Context, frame domaintypes.Frame) error
	// Close requests a graceful shutdown. The EventClosed that follows
	// still arrives on Events.
	Close() error
}

// ChallengeSink receives pairing challenges while a connection is pairing.
type ChallengeSink interface {
	Offer(ch domaintypes.PairingChallenge) error
	Consume()
}

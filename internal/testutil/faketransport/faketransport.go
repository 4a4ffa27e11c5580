// Package faketransport is a scripted in-memory domain.Transport for tests.
package faketransport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"devlink/internal/domain"
)

// NormalClosure is the code a locally closed Conn reports.
const NormalClosure = 1000

// Transport hands out a new Conn per Connect call.
type Transport struct {
	mu       sync.Mutex
	dialErrs []error
	dials    int
	conns    chan *Conn
}

// New returns an empty Transport.
func New() *Transport {
	return &Transport{conns: make(chan *Conn, 32)}
}

// FailNext makes the next Connect call return err.
func (t *Transport) FailNext(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialErrs = append(t.dialErrs, err)
}

// Dials returns how many times Connect was called.
func (t *Transport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func (t *Transport) Connect(ctx context.Context, creds domain.Credentials) (domain.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.dials++
	if len(t.dialErrs) > 0 {
		err := t.dialErrs[0]
		t.dialErrs = t.dialErrs[1:]
		t.mu.Unlock()
		return nil, err
	}
	t.mu.Unlock()

	c := &Conn{
		Creds:  creds.Clone(),
		events: make(chan domain.Event, 64),
	}
	t.conns <- c
	return c, nil
}

// Next waits for the next dialed Conn.
func (t *Transport) Next(tb testing.TB) *Conn {
	tb.Helper()
	select {
	case c := <-t.conns:
		return c
	case <-time.After(5 * time.Second):
		tb.Fatal("timed out waiting for a connection")
		return nil
	}
}

// Conn is one scripted connection.
type Conn struct {
	// Creds are the credentials the connection was dialed with.
	Creds domain.Credentials

	mu         sync.Mutex
	events     chan domain.Event
	closed     bool
	sent       []domain.Frame
	closeCalls int
}

func (c *Conn) Events() <-chan domain.Event { return c.events }

func (c *Conn) Send(ctx context.Context, frame domain.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.sent = append(c.sent, frame)
	return nil
}

// Close emits a normal closure, as a real transport does once the peer
// acknowledges.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.CloseWith(NormalClosure, nil)
	return nil
}

// Challenge emits a pairing challenge.
func (c *Conn) Challenge(payload string, ttl time.Duration) {
	c.emit(domain.Event{
		Kind:      domain.EventChallenge,
		Challenge: domain.PairingChallenge{Payload: payload, IssuedAt: time.Now(), TTL: ttl},
	})
}

// Opened emits an open event for account.
func (c *Conn) Opened(account domain.AccountID) {
	c.emit(domain.Event{Kind: domain.EventOpened, Account: account})
}

// Credentials emits a credential delta.
func (c *Conn) Credentials(delta domain.CredentialDelta) {
	c.emit(domain.Event{Kind: domain.EventCredentials, Delta: delta})
}

// CloseWith emits the final close event and ends the stream. Later calls
// are ignored.
func (c *Conn) CloseWith(code int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.events <- domain.Event{Kind: domain.EventClosed, At: time.Now(), Code: code, Err: err}
	close(c.events)
}

// Sent returns the frames written so far.
func (c *Conn) Sent() []domain.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Frame(nil), c.sent...)
}

// CloseCalls returns how many times Close was called.
func (c *Conn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

func (c *Conn) emit(ev domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	ev.At = time.Now()
	c.events <- ev
}

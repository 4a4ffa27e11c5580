package connection

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"devlink/internal/domain"
	"devlink/internal/logging"
)

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger that reports every transition.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) { m.log = logging.Component(l, "connection") }
}

// WithChallengeSink routes pairing challenges to sink.
func WithChallengeSink(sink domain.ChallengeSink) Option {
	return func(m *Machine) { m.sink = sink }
}

// Machine is the connection state machine for one logical connection.
// Await must only be called from one goroutine at a time; State, Send and
// Close are safe for concurrent use.
type Machine struct {
	transport domain.Transport
	store     domain.CredentialStore
	sink      domain.ChallengeSink
	log       zerolog.Logger

	mu     sync.Mutex
	state  domain.ConnectionState
	conn   domain.Connection
	events <-chan domain.Event
}

// NewMachine returns an Idle machine.
func NewMachine(transport domain.Transport, store domain.CredentialStore, opts ...Option) *Machine {
	m := &Machine{
		transport: transport,
		store:     store,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current connection state.
func (m *Machine) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start moves Idle to Pairing and dials the transport with the stored
// credentials. A failed dial leaves the machine Closed with the
// classified reason and returns the dial error.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Phase != domain.PhaseIdle {
		phase := m.state.Phase
		m.mu.Unlock()
		return fmt.Errorf("%w: start from %s", domain.ErrInvalidTransition, phase)
	}
	m.setLocked(domain.ConnectionState{Phase: domain.PhasePairing})
	m.mu.Unlock()

	creds := m.store.Load()
	if since, ok := creds.Fragment(domain.FragmentLiveSession); ok {
		m.log.Warn().
			Str("open_since", string(since)).
			Msg("previous run exited without closing its connection; the server may report a session conflict")
	}
	m.log.Info().Bool("registered", creds.Registered).Msg("connecting")
	conn, err := m.transport.Connect(ctx, creds)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.setLocked(domain.ConnectionState{Phase: domain.PhaseClosed, Reason: Classify(0, err)})
		return fmt.Errorf("connection: dial: %w", err)
	}
	m.conn = conn
	m.events = conn.Events()
	if m.state.Phase == domain.PhaseClosing {
		// Close was requested while dialing.
		_ = conn.Close()
	}
	return nil
}

// Await consumes events in arrival order until the machine reaches Open
// or Closed, or ctx ends. It returns immediately when already Closed.
func (m *Machine) Await(ctx context.Context) (domain.ConnectionState, error) {
	m.mu.Lock()
	state, events := m.state, m.events
	m.mu.Unlock()

	switch state.Phase {
	case domain.PhaseClosed:
		return state, nil
	case domain.PhaseIdle:
		return state, fmt.Errorf("%w: await while idle", domain.ErrInvalidTransition)
	}

	for {
		select {
		case <-ctx.Done():
			return m.State(), ctx.Err()
		case ev, ok := <-events:
			if !ok {
				ev = domain.Event{Kind: domain.EventClosed, Err: io.ErrUnexpectedEOF}
			}
			next, done, err := m.handle(ev)
			if err != nil || done {
				return next, err
			}
		}
	}
}

// Send writes frame on the connection. It fails with domain.ErrNotOpen
// unless the machine is Open. The state is checked under the same lock
// that applies the close transition.
func (m *Machine) Send(ctx context.Context, frame domain.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != domain.PhaseOpen {
		return fmt.Errorf("%w: state is %s", domain.ErrNotOpen, m.state)
	}
	return m.conn.Send(ctx, frame)
}

// Close starts a graceful shutdown. The machine becomes Closed once the
// transport reports the close through Await. Closing an Idle, Closing or
// Closed machine is a no-op.
func (m *Machine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Live() {
		return nil
	}
	m.setLocked(domain.ConnectionState{Phase: domain.PhaseClosing})
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}

// Reset moves Closed back to Idle so the machine can Start again.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != domain.PhaseClosed {
		return fmt.Errorf("%w: reset from %s", domain.ErrInvalidTransition, m.state.Phase)
	}
	m.conn = nil
	m.events = nil
	m.setLocked(domain.ConnectionState{Phase: domain.PhaseIdle})
	return nil
}

func (m *Machine) handle(ev domain.Event) (domain.ConnectionState, bool, error) {
	switch ev.Kind {
	case domain.EventChallenge:
		return m.onChallenge(ev)
	case domain.EventCredentials:
		return m.onCredentials(ev)
	case domain.EventOpened:
		return m.onOpened(ev)
	case domain.EventClosed:
		return m.onClosed(ev)
	default:
		return m.State(), false, fmt.Errorf("%w: unknown event %d", domain.ErrInvalidTransition, ev.Kind)
	}
}

func (m *Machine) onChallenge(ev domain.Event) (domain.ConnectionState, bool, error) {
	state := m.State()
	switch state.Phase {
	case domain.PhasePairing:
	case domain.PhaseClosing:
		return state, false, nil
	default:
		return state, false, fmt.Errorf("%w: challenge while %s", domain.ErrInvalidTransition, state)
	}
	m.log.Info().Time("expires", ev.Challenge.ExpiresAt()).Msg("pairing challenge issued")
	if m.sink != nil {
		if err := m.sink.Offer(ev.Challenge); err != nil {
			return state, false, fmt.Errorf("connection: render challenge: %w", err)
		}
	}
	return state, false, nil
}

func (m *Machine) onCredentials(ev domain.Event) (domain.ConnectionState, bool, error) {
	state := m.State()
	if !state.Live() && state.Phase != domain.PhaseClosing {
		return state, false, fmt.Errorf("%w: credentials while %s", domain.ErrInvalidTransition, state)
	}
	if err := m.store.ApplyUpdate(ev.Delta); err != nil {
		return state, false, err
	}
	m.log.Debug().Int("set", len(ev.Delta.Set)).Int("deleted", len(ev.Delta.Delete)).Msg("credentials updated")
	return state, false, nil
}

func (m *Machine) onOpened(ev domain.Event) (domain.ConnectionState, bool, error) {
	state := m.State()
	switch state.Phase {
	case domain.PhasePairing:
	case domain.PhaseClosing:
		return state, false, nil
	default:
		return state, false, fmt.Errorf("%w: opened while %s", domain.ErrInvalidTransition, state)
	}
	delta := domain.RegisteredDelta(ev.Account)
	delta.Set[domain.FragmentLiveSession] = []byte(time.Now().UTC().Format(time.RFC3339))
	if err := m.store.ApplyUpdate(delta); err != nil {
		return state, false, err
	}
	if m.sink != nil {
		m.sink.Consume()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != domain.PhasePairing {
		// Close raced the open.
		return m.state, false, nil
	}
	m.setLocked(domain.ConnectionState{Phase: domain.PhaseOpen})
	m.log.Info().Str("account", string(ev.Account)).Msg("connection open")
	return m.state, true, nil
}

func (m *Machine) onClosed(ev domain.Event) (domain.ConnectionState, bool, error) {
	reason := Classify(ev.Code, ev.Err)

	m.mu.Lock()
	if m.state.Phase == domain.PhaseClosed || m.state.Phase == domain.PhaseIdle {
		state := m.state
		m.mu.Unlock()
		return state, false, fmt.Errorf("%w: closed while %s", domain.ErrInvalidTransition, state)
	}
	m.setLocked(domain.ConnectionState{Phase: domain.PhaseClosed, Reason: reason})
	state := m.state
	m.mu.Unlock()

	if m.sink != nil {
		m.sink.Consume()
	}
	if !reason.Terminal() {
		marker := domain.CredentialDelta{Delete: []domain.FragmentName{domain.FragmentLiveSession}}
		if err := m.store.ApplyUpdate(marker); err != nil {
			m.log.Warn().Err(err).Msg("live session marker not cleared")
		}
	}
	evt := m.log.Info()
	if reason.Kind == domain.DisconnectUnknown {
		evt = m.log.Warn()
	}
	if ev.Err != nil {
		evt = evt.Err(ev.Err)
	}
	evt.Str("reason", reason.String()).Bool("terminal", reason.Terminal()).Msg("connection closed")
	return state, true, nil
}

// setLocked changes state and logs the transition. Callers hold m.mu.
func (m *Machine) setLocked(next domain.ConnectionState) {
	prev := m.state
	m.state = next
	if next.Phase == domain.PhaseClosed {
		return
	}
	m.log.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("connection state")
}

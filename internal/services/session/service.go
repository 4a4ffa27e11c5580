package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"devlink/internal/connection"
	"devlink/internal/domain"
	"devlink/internal/logging"
	"devlink/internal/services/identity"
	"devlink/internal/services/prekey"
)

// Config holds the lifecycle tunables.
type Config struct {
	// PairingTimeout bounds the whole pairing window, retries included.
	PairingTimeout time.Duration
	// PreKeyCount is the size of the one-time pre-key batch at bootstrap.
	PreKeyCount int
	Backoff     connection.BackoffConfig
	// DrainTimeout bounds how long a graceful close waits for the
	// transport to confirm.
	DrainTimeout time.Duration
}

// DefaultConfig returns a three minute pairing window, 30 pre-keys and
// the default reconnect policy.
func DefaultConfig() Config {
	return Config{
		PairingTimeout: 3 * time.Minute,
		PreKeyCount:    prekey.DefaultCount,
		Backoff:        connection.DefaultBackoff(),
		DrainTimeout:   5 * time.Second,
	}
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for lifecycle progress.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.base = l }
}

// WithChallengeSink routes pairing challenges to sink.
func WithChallengeSink(sink domain.ChallengeSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithKeyServices replaces the identity and pre-key generators.
func WithKeyServices(ids domain.IdentityService, pks domain.PreKeyService) Option {
	return func(s *Service) { s.ids, s.pks = ids, pks }
}

// WithRand sets the jitter source for reconnect backoff.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

// Service is the session lifecycle controller.
type Service struct {
	cfg       Config
	store     domain.CredentialStore
	transport domain.Transport
	sink      domain.ChallengeSink
	ids       domain.IdentityService
	pks       domain.PreKeyService
	rng       *rand.Rand
	base      zerolog.Logger
	log       zerolog.Logger

	mu      sync.Mutex
	current *connection.Machine
}

// New returns a controller for the credentials in store.
func New(cfg Config, store domain.CredentialStore, transport domain.Transport, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		store:     store,
		transport: transport,
		ids:       identity.New(),
		pks:       prekey.New(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		base:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.Component(s.base, "session")
	return s
}

// Authenticate returns AlreadyRegistered when the store holds a registered
// session, without dialing. Otherwise it pairs within the configured
// window and returns Paired once the session opened, closing it again.
func (s *Service) Authenticate(ctx context.Context) (domain.AuthResult, error) {
	creds := s.store.Load()
	if creds.Registered {
		s.log.Info().Str("account", string(creds.Account())).Msg("already registered")
		return domain.AlreadyRegistered, nil
	}
	if _, err := s.ids.LoadIdentity(creds); err != nil {
		if err := s.bootstrap(); err != nil {
			return 0, err
		}
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.PairingTimeout)
	defer cancel()
	s.log.Info().Dur("timeout", s.cfg.PairingTimeout).Msg("pairing started")

	backoff := connection.NewBackoff(s.cfg.Backoff, s.rng)
	for {
		m := s.newMachine()
		startErr := m.Start(pctx)
		state, err := m.Await(pctx)
		if err != nil {
			s.shutdown(m)
			return 0, s.pairingAbort(ctx, pctx, err)
		}

		switch state.Phase {
		case domain.PhaseOpen:
			s.log.Info().Msg("device paired")
			s.shutdown(m)
			return domain.Paired, nil
		case domain.PhaseClosed:
			if err := s.afterClose(pctx, state.Reason, backoff, startErr); err != nil {
				return 0, s.pairingAbort(ctx, pctx, err)
			}
		}
	}
}

// Run keeps a registered session open until ctx ends, reconnecting after
// retryable disconnects. It returns nil after a graceful shutdown.
func (s *Service) Run(ctx context.Context) error {
	if !s.store.Load().Registered {
		return domain.ErrNotRegistered
	}

	backoff := connection.NewBackoff(s.cfg.Backoff, s.rng)
	for {
		m := s.newMachine()
		startErr := m.Start(ctx)
		state, err := m.Await(ctx)
		if err == nil && state.Phase == domain.PhaseOpen {
			backoff.Reset()
			state, err = m.Await(ctx)
		}
		if err != nil {
			s.shutdown(m)
			if ctx.Err() != nil {
				s.log.Info().Msg("session stopped")
				return nil
			}
			return err
		}

		if err := s.afterClose(ctx, state.Reason, backoff, startErr); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				s.log.Info().Msg("session stopped")
				return nil
			}
			return err
		}
	}
}

// Send writes frame on the live session.
func (s *Service) Send(ctx context.Context, frame domain.Frame) error {
	s.mu.Lock()
	m := s.current
	s.mu.Unlock()
	if m == nil {
		return domain.ErrNotOpen
	}
	return m.Send(ctx, frame)
}

// State returns the state of the live connection, Idle when there is none.
func (s *Service) State() domain.ConnectionState {
	s.mu.Lock()
	m := s.current
	s.mu.Unlock()
	if m == nil {
		return domain.ConnectionState{}
	}
	return m.State()
}

// afterClose handles a Closed state: terminal reasons clear the store,
// retryable ones wait out the backoff. A nil return means try again.
func (s *Service) afterClose(ctx context.Context, reason domain.DisconnectReason, backoff *connection.Backoff, cause error) error {
	if reason.Terminal() {
		if err := s.store.Clear(); err != nil {
			return err
		}
		s.log.Error().Str("reason", reason.String()).Msg("session ended for good, credentials cleared")
		return &domain.TerminalSessionError{Reason: reason}
	}
	delay, ok := backoff.Fail()
	if !ok {
		return &domain.TransportError{Reason: reason, Attempts: backoff.Failures(), Err: cause}
	}
	s.log.Info().
		Str("reason", reason.String()).
		Int("attempt", backoff.Failures()).
		Dur("delay", delay).
		Msg("reconnecting")
	return connection.Sleep(ctx, delay)
}

// pairingAbort maps a failure inside the pairing window. An expired
// window leaves the store unregistered.
func (s *Service) pairingAbort(ctx, pctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(pctx.Err(), context.DeadlineExceeded) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		if cerr := s.store.Clear(); cerr != nil {
			return cerr
		}
		s.log.Warn().Msg("pairing window expired")
		return domain.ErrPairingTimeout
	}
	return err
}

// bootstrap persists a fresh identity and pre-key batch in one commit.
func (s *Service) bootstrap() error {
	delta, fp, err := s.ids.GenerateIdentity()
	if err != nil {
		return err
	}
	id, err := s.ids.LoadIdentity(delta.Apply(domain.Credentials{}))
	if err != nil {
		return err
	}
	pk, err := s.pks.GeneratePreKeys(id, s.cfg.PreKeyCount)
	if err != nil {
		return err
	}
	for name, value := range pk.Set {
		delta.Set[name] = value
	}
	if err := s.store.ApplyUpdate(delta); err != nil {
		return err
	}
	s.log.Info().Str("fingerprint", string(fp)).Msg("generated device identity")
	return nil
}

func (s *Service) newMachine() *connection.Machine {
	m := connection.NewMachine(s.transport, s.store,
		connection.WithLogger(s.base),
		connection.WithChallengeSink(s.sink),
	)
	s.mu.Lock()
	s.current = m
	s.mu.Unlock()
	return m
}

// shutdown closes m gracefully and waits for the transport to confirm.
func (s *Service) shutdown(m *connection.Machine) {
	if m.State().Phase == domain.PhaseClosed {
		return
	}
	if err := m.Close(); err != nil {
		s.log.Debug().Err(err).Msg("close request failed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
	defer cancel()
	if state, err := m.Await(ctx); err != nil || state.Phase != domain.PhaseClosed {
		s.log.Warn().Err(err).Msg("transport did not confirm the close")
	}
}

package connection_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devlink/internal/connection"
	"devlink/internal/domain"
	"devlink/internal/testutil/faketransport"
	"devlink/internal/testutil/memstore"
	"devlink/internal/testutil/testlog"
)

type recordingSink struct {
	mu       sync.Mutex
	offered  []string
	consumed int
	err      error
}

func (s *recordingSink) Offer(ch domain.PairingChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.offered = append(s.offered, ch.Payload)
	return nil
}

func (s *recordingSink) Consume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumed++
}

func newMachine(t *testing.T, st domain.CredentialStore, sink domain.ChallengeSink) (*connection.Machine, *faketransport.Transport) {
	t.Helper()
	tr := faketransport.New()
	m := connection.NewMachine(tr, st,
		connection.WithLogger(testlog.Start(t)),
		connection.WithChallengeSink(sink),
	)
	return m, tr
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestMachine_PairingToOpenToLoggedOut(t *testing.T) {
	ctx := ctxT(t)
	st := memstore.New()
	sink := &recordingSink{}
	m, tr := newMachine(t, st, sink)

	assert.Equal(t, domain.PhaseIdle, m.State().Phase)
	require.NoError(t, m.Start(ctx))
	assert.Equal(t, domain.PhasePairing, m.State().Phase)

	conn := tr.Next(t)
	conn.Challenge("ref-1", time.Minute)
	conn.Credentials(domain.CredentialDelta{Set: map[domain.FragmentName][]byte{"me": []byte("x")}})
	conn.Opened("acct-1")

	state, err := m.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseOpen, state.Phase)
	assert.Equal(t, []string{"ref-1"}, sink.offered)
	assert.Equal(t, 1, sink.consumed)

	creds := st.Load()
	assert.True(t, creds.Registered)
	assert.Equal(t, domain.AccountID("acct-1"), creds.Account())
	_, ok := creds.Fragment("me")
	assert.True(t, ok)

	require.NoError(t, m.Send(ctx, domain.Frame{Type: "presence"}))
	assert.Len(t, conn.Sent(), 1)

	conn.CloseWith(401, nil)
	state, err = m.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseClosed, state.Phase)
	assert.Equal(t, domain.DisconnectLoggedOut, state.Reason.Kind)
	assert.True(t, state.Reason.Terminal())

	err = m.Send(ctx, domain.Frame{Type: "presence"})
	assert.ErrorIs(t, err, domain.ErrNotOpen)
	assert.Len(t, conn.Sent(), 1)
}

func TestMachine_CredentialDeltaWhileOpen(t *testing.T) {
	ctx := ctxT(t)
	st := memstore.Registered("acct")
	m, tr := newMachine(t, st, nil)

	require.NoError(t, m.Start(ctx))
	conn := tr.Next(t)
	assert.True(t, conn.Creds.Registered)
	conn.Opened("acct")
	_, err := m.Await(ctx)
	require.NoError(t, err)

	before := st.Load().Version
	conn.Credentials(domain.CredentialDelta{Set: map[domain.FragmentName][]byte{"pre-keys": []byte("b2")}})
	conn.CloseWith(515, nil)

	state, err := m.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DisconnectTransientNetwork, state.Reason.Kind)
	creds := st.Load()
	assert.Greater(t, creds.Version, before)
	v, ok := creds.Fragment("pre-keys")
	require.True(t, ok)
	assert.Equal(t, "b2", string(v))
}

func TestMachine_LiveSessionMarker(t *testing.T) {
	ctx := ctxT(t)
	st := memstore.Registered("acct")
	m, tr := newMachine(t, st, nil)

	require.NoError(t, m.Start(ctx))
	conn := tr.Next(t)
	conn.Opened("acct")
	_, err := m.Await(ctx)
	require.NoError(t, err)
	_, live := st.Load().Fragment(domain.FragmentLiveSession)
	assert.True(t, live, "marker is set while open")

	// A process killed here leaves the marker for the next start to report.
	var logs bytes.Buffer
	tr2 := faketransport.New()
	next := connection.NewMachine(tr2, st, connection.WithLogger(zerolog.New(&logs)))
	require.NoError(t, next.Start(ctx))
	_, stale := tr2.Next(t).Creds.Fragment(domain.FragmentLiveSession)
	assert.True(t, stale)
	assert.Contains(t, logs.String(), "session conflict")

	require.NoError(t, m.Close())
	state, err := m.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseClosed, state.Phase)
	_, live = st.Load().Fragment(domain.FragmentLiveSession)
	assert.False(t, live, "marker is removed once the close is observed")
	assert.True(t, st.Load().Registered)
}

func TestMachine_TerminalCloseLeavesMarkerForClear(t *testing.T) {
	ctx := ctxT(t)
	st := memstore.Registered("acct")
	m, tr := newMachine(t, st, nil)

	require.NoError(t, m.Start(ctx))
	conn := tr.Next(t)
	conn.Opened("acct")
	_, err := m.Await(ctx)
	require.NoError(t, err)
	commits := st.Commits()

	conn.CloseWith(440, nil)
	state, err := m.Await(ctx)
	require.NoError(t, err)
	assert.True(t, state.Reason.Terminal())
	assert.Equal(t, commits, st.Commits())
}

func TestMachine_PersistenceFailureIsReturned(t *testing.T) {
	ctx := ctxT(t)
	st := memstore.New()
	m, tr := newMachine(t, st, nil)

	require.NoError(t, m.Start(ctx))
	conn := tr.Next(t)
	st.FailApply(errors.New("disk full"))
	conn.Opened("acct")

	_, err := m.Await(ctx)
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.PhasePairing, m.State().Phase)
}

func TestMachine_RenderFailureIsReturned(t *testing.T) {
	ctx := ctxT(t)
	sink := &recordingSink{err: errors.New("no terminal")}
	m, tr := newMachine(t, memstore.New(), sink)

	require.NoError(t, m.Start(ctx))
	tr.Next(t).Challenge("ref", time.Minute)
	_, err := m.Await(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no terminal")
}

func TestMachine_DialFailureClosesWithReason(t *testing.T) {
	ctx := ctxT(t)
	m, tr := newMachine(t, memstore.New(), nil)
	tr.FailNext(syscall.ECONNREFUSED)

	err := m.Start(ctx)
	require.ErrorIs(t, err, syscall.ECONNREFUSED)

	state, err := m.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseClosed, state.Phase)
	assert.Equal(t, domain.DisconnectTransientNetwork, state.Reason.Kind)
}

func TestMachine_GracefulCloseAndRestart(t *testing.T) {
	ctx := ctxT(t)
	m, tr := newMachine(t, memstore.Registered("acct"), nil)

	require.NoError(t, m.Start(ctx))
	conn := tr.Next(t)
	conn.Opened("acct")
	_, err := m.Await(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.Equal(t, domain.PhaseClosing, m.State().Phase)
	assert.ErrorIs(t, m.Send(ctx, domain.Frame{Type: "x"}), domain.ErrNotOpen)
	require.NoError(t, m.Close())
	assert.Equal(t, 1, conn.CloseCalls())

	state, err := m.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseClosed, state.Phase)
	assert.Equal(t, faketransport.NormalClosure, state.Reason.Code)
	assert.True(t, state.Reason.Retryable())

	require.NoError(t, m.Reset())
	assert.Equal(t, domain.PhaseIdle, m.State().Phase)
	require.NoError(t, m.Start(ctx))
	assert.Equal(t, 2, tr.Dials())
}

func TestMachine_InvalidTransitions(t *testing.T) {
	ctx := ctxT(t)
	m, tr := newMachine(t, memstore.New(), nil)

	assert.ErrorIs(t, m.Reset(), domain.ErrInvalidTransition)
	_, err := m.Await(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, m.Start(ctx))
	assert.ErrorIs(t, m.Start(ctx), domain.ErrInvalidTransition)
	assert.ErrorIs(t, m.Reset(), domain.ErrInvalidTransition)

	conn := tr.Next(t)
	conn.Opened("acct")
	_, err = m.Await(ctx)
	require.NoError(t, err)

	conn.Challenge("late", time.Minute)
	_, err = m.Await(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.PhaseOpen, m.State().Phase)
}

func TestMachine_AwaitHonoursContext(t *testing.T) {
	m, tr := newMachine(t, memstore.New(), nil)
	require.NoError(t, m.Start(ctxT(t)))
	tr.Next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	state, err := m.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.PhasePairing, state.Phase)
}

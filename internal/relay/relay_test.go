package relay_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devlink/internal/connection"
	"devlink/internal/domain"
	"devlink/internal/pairing"
	"devlink/internal/relay"
	"devlink/internal/services/identity"
	"devlink/internal/services/session"
	"devlink/internal/store"
	"devlink/internal/testutil/testlog"
)

var clientInfo = domain.ClientInfo{Name: "devlink", Browser: "Chrome", Version: "1.0.0"}

type env struct {
	admin    *relay.Admin
	client   *relay.Client
	store    *store.CredentialFileStore
	svc      *session.Service
	payloads chan string
}

func newEnv(t *testing.T, cfg relay.ServerConfig) *env {
	t.Helper()
	srv := relay.NewServer(cfg, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := relay.NewClient(ts.URL, clientInfo, zerolog.Nop())
	require.NoError(t, err)

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log := testlog.Start(t)
	payloads := make(chan string, 16)
	issuer := pairing.NewIssuer(pairing.RendererFunc(func(p string) error {
		payloads <- p
		return nil
	}), log)

	scfg := session.DefaultConfig()
	scfg.PairingTimeout = 10 * time.Second
	scfg.PreKeyCount = 2
	scfg.Backoff = connection.BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 2, MaxAttempts: 3}
	svc := session.New(scfg, st, client,
		session.WithLogger(log),
		session.WithChallengeSink(issuer),
	)
	return &env{
		admin:    relay.NewAdmin(ts.URL, ts.Client()),
		client:   client,
		store:    st,
		svc:      svc,
		payloads: payloads,
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

// pair runs Authenticate against the relay and approves the first
// challenge, returning the account id.
func (e *env) pair(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	type result struct {
		res domain.AuthResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := e.svc.Authenticate(ctx)
		done <- result{res, err}
	}()

	payload := recv(t, e.payloads)
	parts := strings.Split(payload, ",")
	require.Len(t, parts, 4)
	account, err := e.admin.Pair(ctx, payload)
	require.NoError(t, err)

	got := recv(t, done)
	require.NoError(t, got.err)
	require.Equal(t, domain.Paired, got.res)
	return account
}

func (e *env) run(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- e.svc.Run(ctx) }()
	return done
}

func TestEndToEnd_PairRestartRunLogout(t *testing.T) {
	e := newEnv(t, relay.DefaultServerConfig())
	account := e.pair(t)

	creds := e.store.Load()
	assert.True(t, creds.Registered)
	assert.Equal(t, domain.AccountID(account), creds.Account())
	platform, ok := creds.Fragment("platform")
	require.True(t, ok)
	assert.Equal(t, "devlink-relay", string(platform))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := e.run(ctx)
	require.Eventually(t, func() bool {
		return e.svc.State().Phase == domain.PhaseOpen
	}, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, e.svc.Send(ctx, domain.Frame{Type: "presence", Payload: []byte("available")}))

	accounts, err := e.admin.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].Online)
	assert.Equal(t, [3]string{"devlink", "Chrome", "1.0.0"}, accounts[0].Client)

	require.NoError(t, e.admin.Logout(ctx, account))
	err = recv(t, done)
	var terr *domain.TerminalSessionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.DisconnectLoggedOut, terr.Reason.Kind)
	assert.True(t, e.store.Load().Empty())
}

func TestEndToEnd_ReplacedSessionIsTerminal(t *testing.T) {
	cfg := relay.DefaultServerConfig()
	cfg.RestartAfterPair = false
	e := newEnv(t, cfg)
	account := e.pair(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := e.run(ctx)
	require.Eventually(t, func() bool {
		return e.svc.State().Phase == domain.PhaseOpen
	}, 10*time.Second, 10*time.Millisecond)

	require.NoError(t, e.admin.Replace(ctx, account))
	err := recv(t, done)
	var terr *domain.TerminalSessionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.DisconnectProtocolConflict, terr.Reason.Kind)
	assert.True(t, e.store.Load().Empty())
}

func TestEndToEnd_RunStopsGracefully(t *testing.T) {
	cfg := relay.DefaultServerConfig()
	cfg.RestartAfterPair = false
	e := newEnv(t, cfg)
	e.pair(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := e.run(ctx)
	require.Eventually(t, func() bool {
		return e.svc.State().Phase == domain.PhaseOpen
	}, 10*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, recv(t, done))
	assert.True(t, e.store.Load().Registered)
}

func bootstrapped(t *testing.T) domain.Credentials {
	t.Helper()
	delta, _, err := identity.New().GenerateIdentity()
	require.NoError(t, err)
	return delta.Apply(domain.Credentials{})
}

func drain(t *testing.T, conn domain.Connection) []domain.Event {
	t.Helper()
	var out []domain.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not end")
			return out
		}
	}
}

func TestClient_UnknownRegisteredDeviceIsLoggedOut(t *testing.T) {
	srv := relay.NewServer(relay.DefaultServerConfig(), zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client, err := relay.NewClient(ts.URL, clientInfo, zerolog.Nop())
	require.NoError(t, err)

	creds := domain.RegisteredDelta("ghost").Apply(bootstrapped(t))
	conn, err := client.Connect(context.Background(), creds)
	require.NoError(t, err)

	events := drain(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventClosed, events[0].Kind)
	assert.Equal(t, 401, events[0].Code)
	assert.Equal(t, domain.DisconnectLoggedOut, connection.Classify(events[0].Code, events[0].Err).Kind)
}

func TestClient_RefsRotateThenTimeOut(t *testing.T) {
	cfg := relay.DefaultServerConfig()
	cfg.FirstRefTTL = 30 * time.Millisecond
	cfg.NextRefTTL = 30 * time.Millisecond
	cfg.MaxRefs = 2
	srv := relay.NewServer(cfg, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client, err := relay.NewClient(ts.URL, clientInfo, zerolog.Nop())
	require.NoError(t, err)

	conn, err := client.Connect(context.Background(), bootstrapped(t))
	require.NoError(t, err)

	events := drain(t, conn)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventChallenge, events[0].Kind)
	assert.Equal(t, domain.EventChallenge, events[1].Kind)
	assert.NotEqual(t, events[0].Challenge.Payload, events[1].Challenge.Payload)
	assert.Equal(t, 30*time.Millisecond, events[0].Challenge.TTL)
	assert.Equal(t, domain.EventClosed, events[2].Kind)
	assert.Equal(t, 408, events[2].Code)
}

func TestClient_LocalCloseIsReported(t *testing.T) {
	srv := relay.NewServer(relay.DefaultServerConfig(), zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client, err := relay.NewClient(ts.URL, clientInfo, zerolog.Nop())
	require.NoError(t, err)

	conn, err := client.Connect(context.Background(), bootstrapped(t))
	require.NoError(t, err)
	ev := recv(t, conn.Events())
	require.Equal(t, domain.EventChallenge, ev.Kind)

	require.NoError(t, conn.Close())
	events := drain(t, conn)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventClosed, last.Kind)
	assert.Equal(t, 1000, last.Code)
}

func TestNewClient_RejectsUnknownScheme(t *testing.T) {
	_, err := relay.NewClient("ftp://relay", clientInfo, zerolog.Nop())
	assert.Error(t, err)
	_, err = relay.NewClient("https://relay.example/base/", clientInfo, zerolog.Nop())
	assert.NoError(t, err)
}

func TestChallengeRef(t *testing.T) {
	assert.Equal(t, "abc", relay.ChallengeRef("abc,n,i,a"))
	assert.Equal(t, "abc", relay.ChallengeRef("abc"))
}

func TestConnect_RequiresIdentity(t *testing.T) {
	client, err := relay.NewClient("http://127.0.0.1:1", clientInfo, zerolog.Nop())
	require.NoError(t, err)
	_, err = client.Connect(context.Background(), domain.Credentials{})
	assert.ErrorIs(t, err, identity.ErrNoIdentity)
}

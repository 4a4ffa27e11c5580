package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"devlink/internal/crypto"
	"devlink/internal/domain"
	"devlink/internal/logging"
	"devlink/internal/services/identity"
	"devlink/internal/wire"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	// closeGrace bounds how long a local close waits for the peer's echo.
	closeGrace  = 5 * time.Second
	eventBuffer = 64
)

// Client dials the relay websocket.
type Client struct {
	url    string
	info   domain.ClientInfo
	dialer *websocket.Dialer
	log    zerolog.Logger
}

var _ domain.Transport = (*Client)(nil)

// NewClient returns a transport for the relay at base, an http(s) or
// ws(s) URL.
func NewClient(base string, info domain.ClientInfo, log zerolog.Logger) (*Client, error) {
	u, err := wsURL(base)
	if err != nil {
		return nil, err
	}
	return &Client{
		url:  u,
		info: info,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		log: logging.Component(log, "relay"),
	}, nil
}

// Connect dials the relay and sends the hello for creds. creds must hold
// an identity.
func (c *Client) Connect(ctx context.Context, creds domain.Credentials) (domain.Connection, error) {
	material, err := identity.Decode(creds)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}

	ws, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("relay: dial %s: %s: %w", c.url, resp.Status, err)
		}
		return nil, fmt.Errorf("relay: dial %s: %w", c.url, err)
	}

	hello := wire.Hello{
		Client:         [3]string{c.info.Name, c.info.Browser, c.info.Version},
		Registered:     creds.Registered,
		Account:        string(creds.Account()),
		NoisePub:       material.Noise.Pub.Slice(),
		IdentityPub:    material.Identity.XPub.Slice(),
		RegistrationID: material.RegistrationID,
	}
	data, err := wire.Encode(wire.TypeHello, hello)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	if err := ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("relay: send hello: %w", err)
	}

	conn := &conn{
		ws:       ws,
		material: material,
		events:   make(chan domain.Event, eventBuffer),
		log:      c.log,
	}
	go conn.readLoop()
	c.log.Debug().Str("url", c.url).Bool("registered", creds.Registered).Msg("connected")
	return conn, nil
}

type conn struct {
	ws       *websocket.Conn
	material identity.Material
	events   chan domain.Event
	log      zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *conn) Events() <-chan domain.Event { return c.events }

func (c *conn) Send(ctx context.Context, frame domain.Frame) error {
	data, err := wire.Encode(wire.TypeFrame, wire.Frame{Type: frame.Type, Payload: frame.Payload})
	if err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

// Close sends a normal closure and gives the peer closeGrace to echo it.
// The resulting close is reported on Events.
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		err = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(defaultWriteTimeout))
		_ = c.ws.SetReadDeadline(time.Now().Add(closeGrace))
	})
	return err
}

func (c *conn) readLoop() {
	defer close(c.events)
	defer c.ws.Close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.events <- closedEvent(err)
			return
		}
		ev, ok := c.translate(data)
		if ok {
			ev.At = time.Now()
			c.events <- ev
		}
	}
}

func (c *conn) translate(data []byte) (domain.Event, bool) {
	env, err := wire.Decode(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping undecodable message")
		return domain.Event{}, false
	}
	switch env.Type {
	case wire.TypeChallenge:
		var msg wire.Challenge
		if err := env.Into(&msg); err != nil {
			break
		}
		return domain.Event{
			Kind: domain.EventChallenge,
			Challenge: domain.PairingChallenge{
				Payload:  c.challengePayload(msg.Ref),
				IssuedAt: time.Now(),
				TTL:      time.Duration(msg.TTLms) * time.Millisecond,
			},
		}, true
	case wire.TypePairSuccess:
		var msg wire.PairSuccess
		if err := env.Into(&msg); err != nil {
			break
		}
		delta := domain.CredentialDelta{Set: map[domain.FragmentName][]byte{
			domain.FragmentAccount: []byte(msg.Account),
		}}
		for name, value := range msg.Fragments {
			delta.Set[domain.FragmentName(name)] = value
		}
		return domain.Event{Kind: domain.EventCredentials, Delta: delta}, true
	case wire.TypeCredentials:
		var msg wire.Credentials
		if err := env.Into(&msg); err != nil {
			break
		}
		delta := domain.CredentialDelta{Set: make(map[domain.FragmentName][]byte, len(msg.Set))}
		for name, value := range msg.Set {
			delta.Set[domain.FragmentName(name)] = value
		}
		for _, name := range msg.Delete {
			delta.Delete = append(delta.Delete, domain.FragmentName(name))
		}
		return domain.Event{Kind: domain.EventCredentials, Delta: delta}, true
	case wire.TypeOpen:
		var msg wire.Open
		if err := env.Into(&msg); err != nil {
			break
		}
		return domain.Event{Kind: domain.EventOpened, Account: domain.AccountID(msg.Account)}, true
	case wire.TypeFrame:
		c.log.Debug().Msg("ignoring inbound frame")
		return domain.Event{}, false
	default:
		c.log.Debug().Str("type", string(env.Type)).Msg("ignoring unknown message")
		return domain.Event{}, false
	}
	c.log.Warn().Str("type", string(env.Type)).Msg("dropping malformed message")
	return domain.Event{}, false
}

// challengePayload composes the string a phone scans.
func (c *conn) challengePayload(ref string) string {
	return strings.Join([]string{
		ref,
		crypto.B64(c.material.Noise.Pub.Slice()),
		crypto.B64(c.material.Identity.XPub.Slice()),
		crypto.B64(c.material.AdvSecret),
	}, ",")
}

// closedEvent maps the error that ended the read loop. Service status
// codes travel as private close codes and are unwrapped here.
func closedEvent(err error) domain.Event {
	ev := domain.Event{Kind: domain.EventClosed, At: time.Now(), Err: err}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		ev.Code = wire.StatusFromCloseCode(ce.Code)
		ev.Err = nil
	}
	return ev
}

// ChallengeRef extracts the relay ref from a rendered challenge payload.
func ChallengeRef(payload string) string {
	ref, _, _ := strings.Cut(payload, ",")
	return ref
}

func wsURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("relay: parse url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("relay: unsupported url scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}
	return u.String(), nil
}

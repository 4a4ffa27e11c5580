package relay

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"devlink/internal/logging"
	"devlink/internal/wire"
)

// ServerConfig tunes the development relay.
type ServerConfig struct {
	// FirstRefTTL is the lifetime of the first pairing ref on a
	// connection, NextRefTTL of every later one.
	FirstRefTTL time.Duration
	NextRefTTL  time.Duration
	// MaxRefs is how many refs a connection gets before the server closes
	// it with a timeout status.
	MaxRefs int
	// RestartAfterPair closes a freshly paired connection with a
	// restart-required status instead of opening it.
	RestartAfterPair bool
	HelloTimeout     time.Duration
}

// DefaultServerConfig mirrors the remote service: 60s for the first ref,
// 20s for each of the next five.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		FirstRefTTL:      60 * time.Second,
		NextRefTTL:       20 * time.Second,
		MaxRefs:          6,
		RestartAfterPair: true,
		HelloTimeout:     10 * time.Second,
	}
}

// AccountInfo is the public view of a paired account.
type AccountInfo struct {
	Account        string    `json:"account"`
	Client         [3]string `json:"client"`
	RegistrationID uint16    `json:"registration_id"`
	Online         bool      `json:"online"`
	PairedAt       time.Time `json:"paired_at"`
}

type accountRecord struct {
	info        AccountInfo
	identityPub []byte
}

// Server is an in-memory relay for development and tests.
type Server struct {
	cfg      ServerConfig
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	accounts map[string]*accountRecord
	refs     map[string]*serverConn
	online   map[string]*serverConn
}

// NewServer returns an empty relay.
func NewServer(cfg ServerConfig, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      logging.Component(log, "relay-server"),
		accounts: make(map[string]*accountRecord),
		refs:     make(map[string]*serverConn),
		online:   make(map[string]*serverConn),
	}
}

// Handler returns the HTTP API:
//
//	GET  /ws                 device websocket
//	POST /pair/{ref}         simulate a phone approving ref
//	POST /logout/{account}   unlink account (closes with 401)
//	POST /replace/{account}  replace the live session (closes with 440)
//	GET  /accounts           list paired accounts
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/pair/", s.post(s.handlePair))
	mux.HandleFunc("/logout/", s.post(s.handleLogout))
	mux.HandleFunc("/replace/", s.post(s.handleReplace))
	mux.HandleFunc("/accounts", s.handleAccounts)
	return s.accessLog(mux)
}

// Accounts returns the paired accounts sorted by id.
func (s *Server) Accounts() []AccountInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AccountInfo, 0, len(s.accounts))
	for id, a := range s.accounts {
		info := a.info
		_, info.Online = s.online[id]
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("upgrade failed")
		return
	}
	sc := &serverConn{ws: ws, done: make(chan struct{}), paired: make(chan string, 1)}
	defer s.forget(sc)
	defer close(sc.done)
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.HelloTimeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		return
	}
	_ = ws.SetReadDeadline(time.Time{})
	env, err := wire.Decode(data)
	if err != nil || env.Type != wire.TypeHello {
		sc.closeWith(wire.StatusForbidden, "expected hello")
		return
	}
	if err := env.Into(&sc.hello); err != nil {
		sc.closeWith(wire.StatusForbidden, "bad hello")
		return
	}

	if !s.login(sc) {
		go s.rotateRefs(sc)
	}
	s.readLoop(sc)
}

// login opens the session for a hello naming a known account. It reports
// false when the device must pair first.
func (s *Server) login(sc *serverConn) bool {
	if sc.hello.Account == "" {
		if sc.hello.Registered {
			sc.closeWith(wire.StatusLoggedOut, "unknown device")
			return true
		}
		return false
	}

	s.mu.Lock()
	a, ok := s.accounts[sc.hello.Account]
	if !ok || !bytes.Equal(a.identityPub, sc.hello.IdentityPub) {
		s.mu.Unlock()
		sc.closeWith(wire.StatusLoggedOut, "unknown device")
		return true
	}
	if prev, ok := s.online[sc.hello.Account]; ok && prev != sc {
		// A second connection for the same account replaces the first.
		go prev.closeWith(wire.StatusReplaced, "replaced")
	}
	s.online[sc.hello.Account] = sc
	sc.account = sc.hello.Account
	s.mu.Unlock()

	s.log.Info().Str("account", sc.account).Msg("session open")
	_ = sc.send(wire.TypeOpen, wire.Open{Account: sc.account})
	return true
}

// rotateRefs issues pairing refs until one is approved, the refs run out
// or the connection ends.
func (s *Server) rotateRefs(sc *serverConn) {
	for i := 0; i < s.cfg.MaxRefs; i++ {
		ttl := s.cfg.NextRefTTL
		if i == 0 {
			ttl = s.cfg.FirstRefTTL
		}
		ref := uuid.NewString()
		s.mu.Lock()
		s.refs[ref] = sc
		s.mu.Unlock()

		if err := sc.send(wire.TypeChallenge, wire.Challenge{Ref: ref, TTLms: ttl.Milliseconds()}); err != nil {
			s.dropRef(ref)
			return
		}
		timer := time.NewTimer(ttl)
		select {
		case <-sc.done:
			timer.Stop()
			s.dropRef(ref)
			return
		case account := <-sc.paired:
			timer.Stop()
			s.finishPairing(sc, account)
			return
		case <-timer.C:
			s.dropRef(ref)
		}
	}
	sc.closeWith(wire.StatusTimedOut, "pairing refs exhausted")
}

func (s *Server) finishPairing(sc *serverConn, account string) {
	s.log.Info().Str("account", account).Msg("device paired")
	fragments := map[string][]byte{
		"platform": []byte("devlink-relay"),
		"me":       []byte(account + "@relay"),
	}
	if err := sc.send(wire.TypePairSuccess, wire.PairSuccess{Account: account, Fragments: fragments}); err != nil {
		return
	}
	if s.cfg.RestartAfterPair {
		sc.closeWith(wire.StatusRestartRequired, "restart required")
		return
	}
	s.mu.Lock()
	s.online[account] = sc
	sc.account = account
	s.mu.Unlock()
	_ = sc.send(wire.TypeOpen, wire.Open{Account: account})
}

func (s *Server) readLoop(sc *serverConn) {
	for {
		_, data, err := sc.ws.ReadMessage()
		if err != nil {
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			continue
		}
		if env.Type == wire.TypeFrame {
			var f wire.Frame
			if env.Into(&f) == nil {
				s.log.Debug().Str("account", sc.account).Str("type", f.Type).Msg("frame received")
			}
		}
	}
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request, ref string) {
	s.mu.Lock()
	sc, ok := s.refs[ref]
	if ok {
		// Every ref of the connection dies once one is used.
		for k, v := range s.refs {
			if v == sc {
				delete(s.refs, k)
			}
		}
	}
	var id string
	if ok {
		id = uuid.NewString()
		s.accounts[id] = &accountRecord{
			info: AccountInfo{
				Account:        id,
				Client:         sc.hello.Client,
				RegistrationID: sc.hello.RegistrationID,
				PairedAt:       time.Now().UTC(),
			},
			identityPub: append([]byte(nil), sc.hello.IdentityPub...),
		}
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "unknown or expired ref", http.StatusNotFound)
		return
	}
	sc.paired <- id
	writeJSON(w, map[string]string{"account": id})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	_, ok := s.accounts[id]
	delete(s.accounts, id)
	sc := s.online[id]
	delete(s.online, id)
	s.mu.Unlock()

	if !ok {
		http.Error(w, "unknown account", http.StatusNotFound)
		return
	}
	if sc != nil {
		sc.closeWith(wire.StatusLoggedOut, "logged out")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	sc := s.online[id]
	delete(s.online, id)
	s.mu.Unlock()

	if sc == nil {
		http.Error(w, "account not online", http.StatusNotFound)
		return
	}
	sc.closeWith(wire.StatusReplaced, "replaced")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.Accounts())
}

// post adapts a handler taking the last path segment, POST only.
func (s *Server) post(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		arg := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if arg == "" {
			http.Error(w, "missing argument", http.StatusBadRequest)
			return
		}
		h(w, r, arg)
	}
}

func (s *Server) dropRef(ref string) {
	s.mu.Lock()
	delete(s.refs, ref)
	s.mu.Unlock()
}

func (s *Server) forget(sc *serverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.refs {
		if v == sc {
			delete(s.refs, k)
		}
	}
	if sc.account != "" && s.online[sc.account] == sc {
		delete(s.online, sc.account)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// accessLog records method, path and status of admin requests. The
// websocket endpoint is passed through untouched so it can be hijacked.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// serverConn is one device websocket on the relay side.
type serverConn struct {
	ws      *websocket.Conn
	hello   wire.Hello
	account string
	done    chan struct{}
	paired  chan string
	writeMu sync.Mutex
}

func (c *serverConn) send(t wire.Type, body any) error {
	data, err := wire.Encode(t, body)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

// closeWith sends a close frame carrying status. The device echoes it and
// the read loop then ends the connection.
func (c *serverConn) closeWith(status int, text string) {
	msg := websocket.FormatCloseMessage(wire.CloseCode(status), text)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(defaultWriteTimeout))
	_ = c.ws.SetReadDeadline(time.Now().Add(closeGrace))
}

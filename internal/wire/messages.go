package wire

// Type tags an envelope.
type Type string

const (
	TypeHello       Type = "hello"
	TypeChallenge   Type = "challenge"
	TypePairSuccess Type = "pair-success"
	TypeCredentials Type = "credentials"
	TypeOpen        Type = "open"
	TypeFrame       Type = "frame"
)

// Hello is the first message a device sends after dialing.
type Hello struct {
	Client         [3]string `cbor:"client"`
	Registered     bool      `cbor:"registered"`
	Account        string    `cbor:"account,omitempty"`
	NoisePub       []byte    `cbor:"noise_pub"`
	IdentityPub    []byte    `cbor:"identity_pub"`
	RegistrationID uint16    `cbor:"registration_id"`
}

// Challenge carries a short-lived pairing reference.
type Challenge struct {
	Ref   string `cbor:"ref"`
	TTLms int64  `cbor:"ttl_ms"`
}

// PairSuccess is sent once a human approved the device.
type PairSuccess struct {
	Account   string            `cbor:"account"`
	Fragments map[string][]byte `cbor:"fragments,omitempty"`
}

// Credentials is an incremental credential update pushed by the service.
type Credentials struct {
	Set    map[string][]byte `cbor:"set,omitempty"`
	Delete []string          `cbor:"delete,omitempty"`
}

// Open reports an authenticated session.
type Open struct {
	Account string `cbor:"account"`
}

// Frame is an application command sent on an open session.
type Frame struct {
	Type    string `cbor:"type"`
	Payload []byte `cbor:"payload,omitempty"`
}

// Service status codes carried by close frames.
const (
	StatusLoggedOut       = 401
	StatusForbidden       = 403
	StatusTimedOut        = 408
	StatusConnClosed      = 428
	StatusReplaced        = 440
	StatusUnavailable     = 503
	StatusRestartRequired = 515
)

const closeCodeBase = 4000

// CloseCode maps a service status to a websocket close code.
func CloseCode(status int) int { return closeCodeBase + status }

// StatusFromCloseCode reverses CloseCode. Codes outside the private range
// are returned unchanged.
func StatusFromCloseCode(code int) int {
	if code > closeCodeBase && code < 5000 {
		return code - closeCodeBase
	}
	return code
}

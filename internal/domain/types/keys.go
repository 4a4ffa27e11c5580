package types

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// X25519KeyPair is a Diffie-Hellman key pair.
type X25519KeyPair struct {
	Priv X25519Private `json:"priv"`
	Pub  X25519Public  `json:"pub"`
}

// IdentityKeys holds the long-term keys of this linked device.
type IdentityKeys struct {
	XPub   X25519Public   `json:"xpub"`
	XPriv  X25519Private  `json:"xpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}

// SignedPreKey is the medium-term pre-key signed by the identity key.
type SignedPreKey struct {
	ID        uint32        `json:"id"`
	Pair      X25519KeyPair `json:"pair"`
	Signature []byte        `json:"signature"`
}

// OneTimePreKey is a single-use pre-key.
type OneTimePreKey struct {
	ID   uint32        `json:"id"`
	Pair X25519KeyPair `json:"pair"`
}

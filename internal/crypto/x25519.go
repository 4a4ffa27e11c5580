package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"

	"devlink/internal/domain"
)

// GenerateX25519 returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateX25519() (domain.X25519KeyPair, error) {
	var kp domain.X25519KeyPair
	if _, err := rand.Read(kp.Priv[:]); err != nil {
		return kp, err
	}
	clamp(&kp.Priv)
	pb, err := curve25519.X25519(kp.Priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return kp, err
	}
	copy(kp.Pub[:], pb)
	return kp, nil
}

// PublicX25519 recomputes the public half of priv.
func PublicX25519(priv domain.X25519Private) (domain.X25519Public, error) {
	var pub domain.X25519Public
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return pub, err
	}
	copy(pub[:], pb)
	return pub, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}

package crypto

import (
	"crypto/ed25519"

	"devlink/internal/domain"
)

// GenerateEd25519 derives a signing pair from a fresh 32-byte seed. The
// seed is wiped once the private key holds it.
func GenerateEd25519() (domain.Ed25519Private, domain.Ed25519Public, error) {
	var (
		priv domain.Ed25519Private
		pub  domain.Ed25519Public
	)
	seed, err := RandomBytes(ed25519.SeedSize)
	if err != nil {
		return priv, pub, err
	}
	defer Wipe(seed)

	sk := ed25519.NewKeyFromSeed(seed)
	copy(priv[:], sk)
	copy(pub[:], sk.Public().(ed25519.PublicKey))
	Wipe(sk)
	return priv, pub, nil
}

// SignEd25519 signs msg; pre-keys are signed over their raw public bytes.
func SignEd25519(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(priv.Slice(), msg)
}

// VerifyEd25519 reports whether sig is pub's signature over msg. Signatures
// of the wrong length fail without reaching the curve code.
func VerifyEd25519(pub domain.Ed25519Public, msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub.Slice(), msg, sig)
}

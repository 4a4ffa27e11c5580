package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"devlink/internal/crypto"
	"devlink/internal/domain"
)

const (
	minPassphraseLength = 12
	advSecretBytes      = 32
)

var (
	// ErrWeakPassphrase rejects passphrases that would seal the store weakly.
	ErrWeakPassphrase = fmt.Errorf("identity: weak passphrase: want %d+ characters mixing upper and lower case, digits and symbols", minPassphraseLength)
	// ErrNoIdentity is returned when credentials lack identity material.
	ErrNoIdentity = errors.New("identity: credentials hold no identity")
)

// Material is the decoded identity material the transport needs.
type Material struct {
	Noise          domain.X25519KeyPair
	Identity       domain.IdentityKeys
	RegistrationID uint16
	AdvSecret      []byte
}

// Service creates and inspects device identities.
type Service struct{}

// New returns an identity service.
func New() *Service { return &Service{} }

// GenerateIdentity creates a new identity and returns it as a delta plus a
// short fingerprint of the identity public key.
func (s *Service) GenerateIdentity() (domain.CredentialDelta, domain.Fingerprint, error) {
	noise, err := crypto.GenerateX25519()
	if err != nil {
		return domain.CredentialDelta{}, "", err
	}
	// Agreement key pair.
	xkp, err := crypto.GenerateX25519()
	if err != nil {
		return domain.CredentialDelta{}, "", err
	}
	// Signing key pair.
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.CredentialDelta{}, "", err
	}
	regID, err := crypto.RegistrationID()
	if err != nil {
		return domain.CredentialDelta{}, "", err
	}
	adv, err := crypto.RandomBytes(advSecretBytes)
	if err != nil {
		return domain.CredentialDelta{}, "", err
	}

	id := domain.IdentityKeys{XPub: xkp.Pub, XPriv: xkp.Priv, EdPub: edPub, EdPriv: edPriv}
	noiseRaw, err := json.Marshal(noise)
	if err != nil {
		return domain.CredentialDelta{}, "", err
	}
	idRaw, err := json.Marshal(id)
	if err != nil {
		return domain.CredentialDelta{}, "", err
	}
	regRaw, err := json.Marshal(regID)
	if err != nil {
		return domain.CredentialDelta{}, "", err
	}
	crypto.Wipe(xkp.Priv[:])
	crypto.Wipe(edPriv[:])
	crypto.Wipe(noise.Priv[:])

	delta := domain.CredentialDelta{Set: map[domain.FragmentName][]byte{
		domain.FragmentNoiseKey:     noiseRaw,
		domain.FragmentIdentityKey:  idRaw,
		domain.FragmentRegistration: regRaw,
		domain.FragmentAdvSecret:    adv,
	}}
	return delta, fingerprint(id), nil
}

// LoadIdentity decodes the identity key from creds.
func (s *Service) LoadIdentity(creds domain.Credentials) (domain.IdentityKeys, error) {
	var id domain.IdentityKeys
	raw, ok := creds.Fragment(domain.FragmentIdentityKey)
	if !ok {
		return id, ErrNoIdentity
	}
	if err := json.Unmarshal(raw, &id); err != nil {
		return id, fmt.Errorf("identity: decode identity key: %w", err)
	}
	return id, nil
}

// FingerprintIdentity returns a short fingerprint of the identity public key.
func (s *Service) FingerprintIdentity(creds domain.Credentials) (domain.Fingerprint, error) {
	id, err := s.LoadIdentity(creds)
	if err != nil {
		return "", err
	}
	return fingerprint(id), nil
}

// Decode extracts the transport-facing material from creds.
func Decode(creds domain.Credentials) (Material, error) {
	var m Material
	var err error
	if m.Identity, err = New().LoadIdentity(creds); err != nil {
		return m, err
	}
	raw, ok := creds.Fragment(domain.FragmentNoiseKey)
	if !ok {
		return m, ErrNoIdentity
	}
	if err := json.Unmarshal(raw, &m.Noise); err != nil {
		return m, fmt.Errorf("identity: decode noise key: %w", err)
	}
	if raw, ok = creds.Fragment(domain.FragmentRegistration); ok {
		if err := json.Unmarshal(raw, &m.RegistrationID); err != nil {
			return m, fmt.Errorf("identity: decode registration id: %w", err)
		}
	}
	m.AdvSecret, _ = creds.Fragment(domain.FragmentAdvSecret)
	return m, nil
}

// CheckPassphrase enforces the strength policy on a non-empty passphrase.
// An empty passphrase means the store is not sealed and is accepted.
func CheckPassphrase(passphrase string) error {
	if passphrase == "" || isSecurePassphrase(passphrase) {
		return nil
	}
	return ErrWeakPassphrase
}

func fingerprint(id domain.IdentityKeys) domain.Fingerprint {
	return domain.Fingerprint(crypto.Fingerprint(id.EdPub.Slice()))
}

type charClass uint8

const (
	classUpper charClass = 1 << iota
	classLower
	classDigit
	classSymbol

	allClasses = classUpper | classLower | classDigit | classSymbol
)

// isSecurePassphrase wants minPassphraseLength runes drawn from all four
// character classes.
func isSecurePassphrase(passphrase string) bool {
	if utf8.RuneCountInString(passphrase) < minPassphraseLength {
		return false
	}
	var seen charClass
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			seen |= classUpper
		case unicode.IsLower(r):
			seen |= classLower
		case unicode.IsDigit(r):
			seen |= classDigit
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			seen |= classSymbol
		}
	}
	return seen == allClasses
}

var _ domain.IdentityService = (*Service)(nil)

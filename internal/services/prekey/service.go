package prekey

import (
	"encoding/json"
	"errors"
	"fmt"

	"devlink/internal/crypto"
	"devlink/internal/domain"
)

// DefaultCount is the size of a fresh one-time pre-key batch.
const DefaultCount = 30

var (
	errNoSignedPreKey = errors.New("prekey: no signed pre-key")
	errBadSignature   = errors.New("prekey: signed pre-key signature does not verify")
)

// Service generates pre-keys.
type Service struct{}

// New returns a pre-key service.
func New() *Service { return &Service{} }

// GeneratePreKeys creates a signed pre-key signed by id and count one-time
// pre-keys, returned as one delta.
func (s *Service) GeneratePreKeys(id domain.IdentityKeys, count int) (domain.CredentialDelta, error) {
	if count < 0 {
		return domain.CredentialDelta{}, fmt.Errorf("prekey: negative count %d", count)
	}

	// Signed pre-key
	spkPair, err := crypto.GenerateX25519()
	if err != nil {
		return domain.CredentialDelta{}, err
	}
	spk := domain.SignedPreKey{
		ID:        1,
		Pair:      spkPair,
		Signature: crypto.SignEd25519(id.EdPriv, spkPair.Pub.Slice()),
	}
	spkRaw, err := json.Marshal(spk)
	if err != nil {
		return domain.CredentialDelta{}, err
	}

	// One-time pre-keys
	batch := make([]domain.OneTimePreKey, 0, count)
	for i := 0; i < count; i++ {
		pair, err := crypto.GenerateX25519()
		if err != nil {
			return domain.CredentialDelta{}, err
		}
		batch = append(batch, domain.OneTimePreKey{ID: uint32(i + 1), Pair: pair})
	}
	batchRaw, err := json.Marshal(batch)
	if err != nil {
		return domain.CredentialDelta{}, err
	}

	return domain.CredentialDelta{Set: map[domain.FragmentName][]byte{
		domain.FragmentSignedPreKey: spkRaw,
		domain.FragmentPreKeys:      batchRaw,
	}}, nil
}

// LoadSignedPreKey decodes the signed pre-key and checks its signature
// against id.
func LoadSignedPreKey(creds domain.Credentials, id domain.IdentityKeys) (domain.SignedPreKey, error) {
	var spk domain.SignedPreKey
	raw, ok := creds.Fragment(domain.FragmentSignedPreKey)
	if !ok {
		return spk, errNoSignedPreKey
	}
	if err := json.Unmarshal(raw, &spk); err != nil {
		return spk, fmt.Errorf("prekey: decode signed pre-key: %w", err)
	}
	if !crypto.VerifyEd25519(id.EdPub, spk.Pair.Pub.Slice(), spk.Signature) {
		return spk, errBadSignature
	}
	return spk, nil
}

// LoadOneTimePreKeys decodes the one-time pre-key batch. Missing batches
// decode as empty.
func LoadOneTimePreKeys(creds domain.Credentials) ([]domain.OneTimePreKey, error) {
	raw, ok := creds.Fragment(domain.FragmentPreKeys)
	if !ok {
		return nil, nil
	}
	var batch []domain.OneTimePreKey
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("prekey: decode pre-keys: %w", err)
	}
	return batch, nil
}

// Compile-time assertion that Service implements domain.PreKeyService.
var _ domain.PreKeyService = (*Service)(nil)

package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devlink/internal/crypto"
	"devlink/internal/domain"
	"devlink/internal/services/identity"
)

func TestGenerateIdentity_DecodesBack(t *testing.T) {
	svc := identity.New()
	delta, fp, err := svc.GenerateIdentity()
	require.NoError(t, err)
	assert.Len(t, string(fp), 20)

	creds := delta.Apply(domain.Credentials{})
	m, err := identity.Decode(creds)
	require.NoError(t, err)

	pub, err := crypto.PublicX25519(m.Noise.Priv)
	require.NoError(t, err)
	assert.Equal(t, m.Noise.Pub, pub)
	assert.NotZero(t, m.RegistrationID)
	assert.LessOrEqual(t, m.RegistrationID, uint16(crypto.RegistrationIDMask))
	assert.Len(t, m.AdvSecret, 32)

	got, err := svc.FingerprintIdentity(creds)
	require.NoError(t, err)
	assert.Equal(t, fp, got)

	sig := crypto.SignEd25519(m.Identity.EdPriv, []byte("msg"))
	assert.True(t, crypto.VerifyEd25519(m.Identity.EdPub, []byte("msg"), sig))
}

func TestLoadIdentity_Missing(t *testing.T) {
	_, err := identity.New().LoadIdentity(domain.Credentials{})
	assert.ErrorIs(t, err, identity.ErrNoIdentity)
	_, err = identity.Decode(domain.Credentials{})
	assert.ErrorIs(t, err, identity.ErrNoIdentity)
}

func TestCheckPassphrase(t *testing.T) {
	assert.NoError(t, identity.CheckPassphrase(""))
	assert.NoError(t, identity.CheckPassphrase("Correct-Horse-42"))
	assert.ErrorIs(t, identity.CheckPassphrase("short"), identity.ErrWeakPassphrase)
	assert.ErrorIs(t, identity.CheckPassphrase("alllowercase-but-long1"), identity.ErrWeakPassphrase)
}

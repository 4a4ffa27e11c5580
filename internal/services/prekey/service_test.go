package prekey_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devlink/internal/domain"
	"devlink/internal/services/identity"
	"devlink/internal/services/prekey"
)

func TestGeneratePreKeys(t *testing.T) {
	delta, _, err := identity.New().GenerateIdentity()
	require.NoError(t, err)
	creds := delta.Apply(domain.Credentials{})
	id, err := identity.New().LoadIdentity(creds)
	require.NoError(t, err)

	pk, err := prekey.New().GeneratePreKeys(id, 5)
	require.NoError(t, err)
	creds = pk.Apply(creds)

	spk, err := prekey.LoadSignedPreKey(creds, id)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), spk.ID)

	batch, err := prekey.LoadOneTimePreKeys(creds)
	require.NoError(t, err)
	require.Len(t, batch, 5)
	seen := map[domain.X25519Public]bool{}
	for i, k := range batch {
		assert.Equal(t, uint32(i+1), k.ID)
		seen[k.Pair.Pub] = true
	}
	assert.Len(t, seen, 5)
}

func TestLoadSignedPreKey_RejectsForeignSignature(t *testing.T) {
	svc := identity.New()
	d1, _, err := svc.GenerateIdentity()
	require.NoError(t, err)
	d2, _, err := svc.GenerateIdentity()
	require.NoError(t, err)
	a, err := svc.LoadIdentity(d1.Apply(domain.Credentials{}))
	require.NoError(t, err)
	b, err := svc.LoadIdentity(d2.Apply(domain.Credentials{}))
	require.NoError(t, err)

	pk, err := prekey.New().GeneratePreKeys(a, 0)
	require.NoError(t, err)
	_, err = prekey.LoadSignedPreKey(pk.Apply(domain.Credentials{}), b)
	assert.Error(t, err)

	batch, err := prekey.LoadOneTimePreKeys(pk.Apply(domain.Credentials{}))
	require.NoError(t, err)
	assert.Empty(t, batch)
}

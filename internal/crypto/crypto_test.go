package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devlink/internal/crypto"
)

func TestGenerateX25519Clamped(t *testing.T) {
	kp, err := crypto.GenerateX25519()
	require.NoError(t, err)
	assert.Zero(t, kp.Priv[0]&7)
	assert.Zero(t, kp.Priv[31]&128)
	assert.NotZero(t, kp.Priv[31]&64)

	pub, err := crypto.PublicX25519(kp.Priv)
	require.NoError(t, err)
	assert.Equal(t, kp.Pub, pub)
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	sig := crypto.SignEd25519(priv, []byte("hello"))
	assert.True(t, crypto.VerifyEd25519(pub, []byte("hello"), sig))
	assert.False(t, crypto.VerifyEd25519(pub, []byte("hullo"), sig))
	assert.False(t, crypto.VerifyEd25519(pub, []byte("hello"), sig[:32]))

	other, _, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	assert.NotEqual(t, priv, other)
	assert.Equal(t, pub[:], priv[32:], "private key carries its public half")
}

func TestB64RoundTrip(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0x01, 0x02}
	enc := crypto.B64(raw)
	assert.Equal(t, "+/8BAg==", enc)

	got, err := crypto.FromB64(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = crypto.FromB64("+/8BAg")
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = crypto.FromB64("not base64!")
	assert.Error(t, err)
}

func TestRegistrationIDRange(t *testing.T) {
	for i := 0; i < 64; i++ {
		id, err := crypto.RegistrationID()
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.LessOrEqual(t, id, uint16(crypto.RegistrationIDMask))
	}
}

func TestFingerprintStable(t *testing.T) {
	a := crypto.Fingerprint([]byte("key"))
	assert.Len(t, a, 20)
	assert.Equal(t, a, crypto.Fingerprint([]byte("key")))
	assert.NotEqual(t, a, crypto.Fingerprint([]byte("other")))
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3}
	crypto.Wipe(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}

package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devlink/internal/wire"
)

func TestEncodeDecodeHello(t *testing.T) {
	in := wire.Hello{
		Client:         [3]string{"devlink", "Chrome", "1.0.0"},
		NoisePub:       bytes.Repeat([]byte{1}, 32),
		IdentityPub:    bytes.Repeat([]byte{2}, 32),
		RegistrationID: 1234,
	}
	data, err := wire.Encode(wire.TypeHello, in)
	require.NoError(t, err)

	env, err := wire.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeHello, env.Type)

	var out wire.Hello
	require.NoError(t, env.Into(&out))
	assert.Equal(t, in, out)
}

func TestEncodeIsDeterministic(t *testing.T) {
	msg := wire.Credentials{Set: map[string][]byte{"b": {2}, "a": {1}, "c": {3}}}
	first, err := wire.Encode(wire.TypeCredentials, msg)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := wire.Encode(wire.TypeCredentials, msg)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := wire.Decode([]byte{0xff, 0x00})
	assert.Error(t, err)

	empty, err := wire.Encode("", nil)
	require.NoError(t, err)
	_, err = wire.Decode(empty)
	assert.Error(t, err)

	data, err := wire.Encode(wire.TypeOpen, nil)
	require.NoError(t, err)
	env, err := wire.Decode(data)
	require.NoError(t, err)
	assert.Error(t, env.Into(&wire.Open{}))
}

func TestCloseCodeMapping(t *testing.T) {
	assert.Equal(t, 4401, wire.CloseCode(wire.StatusLoggedOut))
	assert.Equal(t, wire.StatusReplaced, wire.StatusFromCloseCode(wire.CloseCode(wire.StatusReplaced)))
	assert.Equal(t, 1006, wire.StatusFromCloseCode(1006))
}

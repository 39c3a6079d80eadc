package cryptutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := NewAccessKey(RandReader())
	require.NoError(t, err)

	subkey, err := key.Subkey("blockstore/block")
	require.NoError(t, err)
	require.Len(t, subkey, KeySize)

	plaintext := []byte("hello, encrypted world")
	sealed, err := Seal(RandReader(), subkey, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, sealed)

	opened, err := Open(subkey, sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestSealIsNonDeterministic(t *testing.T) {
	key, err := NewAccessKey(RandReader())
	require.NoError(t, err)
	subkey, err := key.Subkey("x")
	require.NoError(t, err)

	a, err := Seal(RandReader(), subkey, []byte("same"))
	require.NoError(t, err)
	b, err := Seal(RandReader(), subkey, []byte("same"))
	require.NoError(t, err)
	require.NotEqual(t, a, b, "fresh nonce should change ciphertext even for identical plaintext")
}

func TestSubkeysAreIndependent(t *testing.T) {
	key, err := NewAccessKey(RandReader())
	require.NoError(t, err)

	a, err := key.Subkey("a")
	require.NoError(t, err)
	b, err := key.Subkey("b")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestOpenRejectsTamperedPayload(t *testing.T) {
	key, err := NewAccessKey(RandReader())
	require.NoError(t, err)
	subkey, err := key.Subkey("x")
	require.NoError(t, err)

	sealed, err := Seal(RandReader(), subkey, []byte("payload"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xFF

	_, err = Open(subkey, sealed)
	require.Error(t, err)
}

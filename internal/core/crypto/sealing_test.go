package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	key1 := DeriveKey("passphrase")
	key2 := DeriveKey("passphrase")
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)

	other := DeriveKey("different")
	assert.NotEqual(t, key1, other)
}

func TestSealUnseal_RoundTrip(t *testing.T) {
	key := DeriveKey("test-passphrase")

	sealed, err := Seal("s3cret-db-password", key)
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))

	plain, err := Unseal(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-db-password", plain)
}

func TestSeal_ProducesUniqueCiphertext(t *testing.T) {
	key := DeriveKey("test-passphrase")

	// Random nonce means two seals of the same value differ
	sealed1, err := Seal("same-value", key)
	require.NoError(t, err)
	sealed2, err := Seal("same-value", key)
	require.NoError(t, err)
	assert.NotEqual(t, sealed1, sealed2)
}

func TestUnseal_WrongKey(t *testing.T) {
	sealed, err := Seal("value", DeriveKey("right"))
	require.NoError(t, err)

	_, err = Unseal(sealed, DeriveKey("wrong"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsealFailed)
}

func TestUnseal_NotSealed(t *testing.T) {
	_, err := Unseal("plain-value", DeriveKey("key"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotSealed)
}

func TestUnseal_CorruptPayload(t *testing.T) {
	key := DeriveKey("key")

	// Invalid base64
	_, err := Unseal("enc:not-base-64!!!", key)
	require.Error(t, err)

	// Valid base64 but shorter than a nonce
	_, err = Unseal("enc:AAAA", key)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestEncrypt_KeyTooShort(t *testing.T) {
	_, err := Encrypt([]byte("data"), []byte("short"))
	assert.ErrorIs(t, err, ErrKeyTooShort)

	_, err = Decrypt([]byte("data"), []byte("short"))
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestIsSealed(t *testing.T) {
	assert.True(t, IsSealed("enc:abc"))
	assert.False(t, IsSealed("encx:abc"))
	assert.False(t, IsSealed("plain"))
	assert.False(t, IsSealed(""))
}

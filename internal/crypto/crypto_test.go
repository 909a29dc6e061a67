package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/AlexZinkM/wallet-crypter/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWorkFactor = 16

func newTestWallet() *model.Wallet {
	return &model.Wallet{
		Network:    "solana",
		Address:    "addr",
		CreatedAt:  "2026-01-02T03:04:05Z",
		PrivateKey: bytes.Repeat([]byte{7}, 64),
	}
}

func deriveTestKey(t *testing.T, d *ScryptDeriver, pass string, params model.ScryptParams) []byte {
	t.Helper()
	key, err := d.DeriveKey([]byte(pass), params)
	require.NoError(t, err)
	return key
}

func TestScryptDeriver_NewParams(t *testing.T) {
	d := NewScryptDeriver()

	params, err := d.NewParams(testWorkFactor)
	require.NoError(t, err)
	assert.Equal(t, testWorkFactor, params.N)
	assert.Equal(t, scryptR, params.R)
	assert.Equal(t, scryptP, params.P)
	assert.Equal(t, scryptKeyLen, params.KeyLen)
	assert.Len(t, params.Salt, saltLen)

	other, err := d.NewParams(testWorkFactor)
	require.NoError(t, err)
	assert.NotEqual(t, params.Salt, other.Salt, "each call must draw a new salt")
}

func TestScryptDeriver_Deterministic(t *testing.T) {
	d := NewScryptDeriver()
	params, err := d.NewParams(testWorkFactor)
	require.NoError(t, err)

	k1 := deriveTestKey(t, d, "correct horse", params)
	k2 := deriveTestKey(t, d, "correct horse", params)
	k3 := deriveTestKey(t, d, "wrong pw", params)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, scryptKeyLen)

	params.N = 32
	k4 := deriveTestKey(t, d, "correct horse", params)
	assert.NotEqual(t, k1, k4, "work factor must change the key")
}

func TestScryptDeriver_Failures(t *testing.T) {
	d := NewScryptDeriver()
	params, err := d.NewParams(testWorkFactor)
	require.NoError(t, err)

	tests := []struct {
		name       string
		passphrase []byte
		params     model.ScryptParams
	}{
		{name: "empty passphrase", passphrase: nil, params: params},
		{name: "invalid utf8", passphrase: []byte{0xff, 0xfe}, params: params},
		{name: "work factor not power of two", passphrase: []byte("pw"), params: model.ScryptParams{N: 1000, R: 8, P: 1, KeyLen: 32, Salt: params.Salt}},
		{name: "work factor above max", passphrase: []byte("pw"), params: model.ScryptParams{N: MaxWorkFactor << 1, R: 8, P: 1, KeyLen: 32, Salt: params.Salt}},
		{name: "work factor 2^30", passphrase: []byte("pw"), params: model.ScryptParams{N: 1 << 30, R: 8, P: 1, KeyLen: 32, Salt: params.Salt}},
		{name: "short salt", passphrase: []byte("pw"), params: model.ScryptParams{N: 16, R: 8, P: 1, KeyLen: 32, Salt: []byte{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.DeriveKey(tt.passphrase, tt.params)
			require.Error(t, err)
			assert.True(t, IsDerivationError(err))
			assert.False(t, IsKeyCrypterError(err))
		})
	}

	_, err = d.NewParams(0)
	assert.True(t, IsDerivationError(err))
	_, err = d.NewParams(1 << 30)
	assert.True(t, IsDerivationError(err))
}

func TestValidateWorkFactor(t *testing.T) {
	for _, n := range []int{2, 16, DefaultWorkFactor, 1 << 18, MaxWorkFactor} {
		assert.NoError(t, ValidateWorkFactor(n), "n=%d", n)
	}
	for _, n := range []int{-2, 0, 1, 3, 1000, MaxWorkFactor << 1, 1 << 30} {
		assert.Error(t, ValidateWorkFactor(n), "n=%d", n)
	}
}

func TestAESGCMCrypter_RoundTrip(t *testing.T) {
	d := NewScryptDeriver()
	c := NewAESGCMCrypter()
	w := newTestWallet()
	original := bytes.Clone(w.PrivateKey)

	params, err := d.NewParams(testWorkFactor)
	require.NoError(t, err)
	key := deriveTestKey(t, d, "correct horse", params)

	require.NoError(t, c.Encrypt(w, key, params))
	assert.True(t, w.IsEncrypted())
	assert.Nil(t, w.PrivateKey)
	assert.Equal(t, testWorkFactor, w.Crypter.N)
	assert.Len(t, w.Nonce, nonceLen)
	assert.NotEmpty(t, w.CipherText)

	again := deriveTestKey(t, d, "correct horse", *w.Crypter)
	require.NoError(t, c.Decrypt(w, again))
	assert.False(t, w.IsEncrypted())
	assert.Equal(t, original, w.PrivateKey)
	assert.Equal(t, "2026-01-02T03:04:05Z", w.CreatedAt)
	assert.Nil(t, w.Nonce)
	assert.Nil(t, w.CipherText)
}

func TestAESGCMCrypter_WrongKeyLeavesWalletEncrypted(t *testing.T) {
	d := NewScryptDeriver()
	c := NewAESGCMCrypter()
	w := newTestWallet()

	params, err := d.NewParams(testWorkFactor)
	require.NoError(t, err)
	require.NoError(t, c.Encrypt(w, deriveTestKey(t, d, "correct horse", params), params))
	before := w.Clone()

	err = c.Decrypt(w, deriveTestKey(t, d, "wrong pw", *w.Crypter))
	require.Error(t, err)
	assert.True(t, IsKeyCrypterError(err))
	assert.Equal(t, "decryption failed", err.Error())
	assert.Equal(t, before, w)
}

func TestAESGCMCrypter_StateErrors(t *testing.T) {
	d := NewScryptDeriver()
	c := NewAESGCMCrypter()
	params, err := d.NewParams(testWorkFactor)
	require.NoError(t, err)
	key := deriveTestKey(t, d, "pw", params)

	w := newTestWallet()
	err = c.Decrypt(w, key)
	assert.True(t, IsKeyCrypterError(err))
	assert.EqualError(t, err, "wallet is not encrypted")

	require.NoError(t, c.Encrypt(w, key, params))
	err = c.Encrypt(w, key, params)
	assert.True(t, IsKeyCrypterError(err))
	assert.EqualError(t, err, "wallet is already encrypted")

	err = c.Encrypt(newTestWallet(), []byte("short"), params)
	assert.True(t, IsKeyCrypterError(err))

	err = c.Encrypt(&model.Wallet{}, key, params)
	assert.EqualError(t, err, "wallet has no key material")
}

func TestAESGCMCrypter_NonceFailure(t *testing.T) {
	c := &AESGCMCrypter{rand: bytes.NewReader(nil)}
	w := newTestWallet()

	err := c.Encrypt(w, make([]byte, scryptKeyLen), model.ScryptParams{N: testWorkFactor})
	require.Error(t, err)
	assert.True(t, IsKeyCrypterError(err))
	assert.False(t, w.IsEncrypted())
	assert.NotNil(t, w.PrivateKey)
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := error(&KeyCrypterError{Message: "decryption failed", Err: cause})
	assert.ErrorIs(t, err, cause)

	err = &DerivationError{Message: "bad", Err: cause}
	assert.ErrorIs(t, err, cause)
}

package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/AlexZinkM/wallet-crypter/internal/model"
)

const nonceLen = 12

// AESGCMCrypter seals wallet key material with AES-256-GCM
type AESGCMCrypter struct {
	rand io.Reader
}

// NewAESGCMCrypter creates a crypter reading nonces from crypto/rand
func NewAESGCMCrypter() *AESGCMCrypter {
	return &AESGCMCrypter{rand: rand.Reader}
}

// Encrypt seals the wallet's private key with key and records params on the
// wallet so the same key can be derived again. The plaintext key is wiped.
func (c *AESGCMCrypter) Encrypt(w *model.Wallet, key []byte, params model.ScryptParams) error {
	if w.IsEncrypted() {
		return &KeyCrypterError{Message: "wallet is already encrypted"}
	}
	if len(w.PrivateKey) == 0 {
		return &KeyCrypterError{Message: "wallet has no key material"}
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return &KeyCrypterError{Message: "failed to generate nonce", Err: err}
	}

	// Serialize wallet data
	plaintext, err := json.Marshal(model.WalletData{
		PrivateKey: w.PrivateKey,
		CreatedAt:  w.CreatedAt,
	})
	if err != nil {
		return &KeyCrypterError{Message: "failed to marshal wallet data", Err: err}
	}
	defer clear(plaintext) // wipe plaintext bytes from memory

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)

	params.Salt = bytes.Clone(params.Salt)
	w.Crypter = &params
	w.Nonce = nonce
	w.CipherText = ciphertext
	w.Wipe()
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != scryptKeyLen {
		return nil, &KeyCrypterError{Message: fmt.Sprintf("invalid key length %d", len(key))}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &KeyCrypterError{Message: "failed to create cipher", Err: err}
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &KeyCrypterError{Message: "failed to create GCM", Err: err}
	}
	return aesGCM, nil
}

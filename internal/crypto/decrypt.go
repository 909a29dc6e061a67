package crypto

import (
	"encoding/json"

	"github.com/AlexZinkM/wallet-crypter/internal/model"
)

// Decrypt opens the wallet's sealed key material with key and leaves the
// wallet unencrypted in memory. A wrong key leaves the wallet untouched.
func (c *AESGCMCrypter) Decrypt(w *model.Wallet, key []byte) error {
	if !w.IsEncrypted() {
		return &KeyCrypterError{Message: "wallet is not encrypted"}
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return err
	}

	plaintext, err := aesGCM.Open(nil, w.Nonce, w.CipherText, nil)
	if err != nil {
		return &KeyCrypterError{Message: "decryption failed", Err: err}
	}
	defer clear(plaintext) // wipe decrypted bytes from memory

	var walletData model.WalletData
	if err := json.Unmarshal(plaintext, &walletData); err != nil {
		return &KeyCrypterError{Message: "failed to unmarshal wallet data", Err: err}
	}

	w.PrivateKey = walletData.PrivateKey
	if walletData.CreatedAt != "" {
		w.CreatedAt = walletData.CreatedAt
	}
	w.Crypter = nil
	w.Nonce = nil
	w.CipherText = nil
	return nil
}

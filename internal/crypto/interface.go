package crypto

import "github.com/AlexZinkM/wallet-crypter/internal/model"

// KeyDeriver turns a passphrase into a symmetric key.
// DeriveKey is deterministic for identical passphrase and params.
type KeyDeriver interface {
	// NewParams returns fresh parameters (new random salt) for the work factor
	NewParams(workFactor int) (model.ScryptParams, error)
	// DeriveKey derives a key; failures are *DerivationError
	DeriveKey(passphrase []byte, params model.ScryptParams) ([]byte, error)
}

// WalletCrypter applies or removes encryption on a wallet's key material.
// Failures are *KeyCrypterError and leave the wallet unchanged.
type WalletCrypter interface {
	Encrypt(w *model.Wallet, key []byte, params model.ScryptParams) error
	Decrypt(w *model.Wallet, key []byte) error
}

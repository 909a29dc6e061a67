package model

import "bytes"

// CWTFile represents .cwt file structure.
// Encrypted wallets carry salt, nonce, cipherText and scrypt parameters;
// unencrypted wallets carry privateKey instead.
type CWTFile struct {
	Network    string `json:"network"`
	Address    string `json:"address"`
	QR         string `json:"QR"`
	CreatedAt  string `json:"createdAt,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
	Salt       string `json:"salt,omitempty"`
	Nonce      string `json:"nonce,omitempty"`
	CipherText string `json:"cipherText,omitempty"`
	ScryptN    int    `json:"scryptN,omitempty"`
	ScryptR    int    `json:"scryptR,omitempty"`
	ScryptP    int    `json:"scryptP,omitempty"`
}

// WalletData represents decrypted wallet data
type WalletData struct {
	PrivateKey []byte `json:"privateKey"` // 64 bytes seed (stored as base64 in JSON)
	CreatedAt  string `json:"createdAt"`
}

// ScryptParams are the key crypter parameters recorded on an encrypted wallet
type ScryptParams struct {
	N      int // work factor
	R      int
	P      int
	KeyLen int
	Salt   []byte
}

// Wallet is the in-memory wallet whose key material is encrypted or decrypted.
// Exactly one of PrivateKey (plaintext) or Crypter+Nonce+CipherText is set.
type Wallet struct {
	Network    string
	Address    string
	QR         string
	CreatedAt  string
	PrivateKey []byte
	Crypter    *ScryptParams
	Nonce      []byte
	CipherText []byte
}

// IsEncrypted reports whether the key material is currently sealed
func (w *Wallet) IsEncrypted() bool {
	return w != nil && w.Crypter != nil
}

// Clone returns a deep copy of w
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	c := *w
	c.PrivateKey = bytes.Clone(w.PrivateKey)
	c.Nonce = bytes.Clone(w.Nonce)
	c.CipherText = bytes.Clone(w.CipherText)
	if w.Crypter != nil {
		p := *w.Crypter
		p.Salt = bytes.Clone(w.Crypter.Salt)
		c.Crypter = &p
	}
	return &c
}

// Wipe zeroes plaintext key material held by w
func (w *Wallet) Wipe() {
	if w == nil {
		return
	}
	clear(w.PrivateKey)
	w.PrivateKey = nil
}

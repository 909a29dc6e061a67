package solana

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/AlexZinkM/wallet-crypter/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/skip2/go-qrcode"
)

const (
	Network = "solana"

	privateKeyLen = 64
)

// GenerateWallet generates a new Solana keypair as an unencrypted wallet.
// The caller owns the key material and should Wipe it when done.
func GenerateWallet() (*model.Wallet, error) {
	// Generate new Solana keypair
	wallet := solana.NewWallet()

	// Get address (public key)
	address := wallet.PublicKey().String()

	// Generate QR code
	qrCode, err := generateQRCode(address)
	if err != nil {
		clear(wallet.PrivateKey)
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	return &model.Wallet{
		Network:    Network,
		Address:    address,
		QR:         qrCode,
		CreatedAt:  time.Now().Format(time.RFC3339),
		PrivateKey: wallet.PrivateKey,
	}, nil
}

// VerifyKeyMaterial checks that the wallet's plaintext private key belongs
// to the wallet address
func VerifyKeyMaterial(w *model.Wallet) error {
	if w.IsEncrypted() {
		return fmt.Errorf("wallet is encrypted")
	}
	if len(w.PrivateKey) != privateKeyLen {
		return fmt.Errorf("invalid private key length %d", len(w.PrivateKey))
	}

	address := solana.PrivateKey(w.PrivateKey).PublicKey().String()
	if address != w.Address {
		return fmt.Errorf("private key does not match address %s", w.Address)
	}
	return nil
}

// generateQRCode generates QR code of address in base64
func generateQRCode(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	// Get PNG image
	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}

	// Encode to base64
	return base64.StdEncoding.EncodeToString(png), nil
}

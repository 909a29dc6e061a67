package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/AlexZinkM/wallet-crypter/internal/model"

	"golang.org/x/crypto/scrypt"
)

const (
	// scrypt parameters besides N, which is the caller's work factor.
	// N=2^16 is the default target: about 64MB RAM per derivation,
	// slow enough for brute-force resistance and still fine on phones.
	DefaultWorkFactor = 1 << 16

	// MaxWorkFactor caps N; scrypt needs 128*r*N bytes, 1GiB at 2^20
	MaxWorkFactor = 1 << 20

	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 32
)

// ScryptDeriver derives wallet keys with scrypt
type ScryptDeriver struct {
	rand io.Reader
}

// NewScryptDeriver creates a deriver reading salts from crypto/rand
func NewScryptDeriver() *ScryptDeriver {
	return &ScryptDeriver{rand: rand.Reader}
}

// NewParams returns scrypt parameters for workFactor with a fresh salt
func (d *ScryptDeriver) NewParams(workFactor int) (model.ScryptParams, error) {
	if err := ValidateWorkFactor(workFactor); err != nil {
		return model.ScryptParams{}, err
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(d.rand, salt); err != nil {
		return model.ScryptParams{}, &DerivationError{Message: "failed to generate salt", Err: err}
	}

	return model.ScryptParams{
		N:      workFactor,
		R:      scryptR,
		P:      scryptP,
		KeyLen: scryptKeyLen,
		Salt:   salt,
	}, nil
}

// DeriveKey derives a key from passphrase using params.
// passphrase must be []byte for security (caller should zero it after use)
func (d *ScryptDeriver) DeriveKey(passphrase []byte, params model.ScryptParams) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, &DerivationError{Message: "passphrase cannot be empty"}
	}
	if !utf8.Valid(passphrase) {
		return nil, &DerivationError{Message: "invalid passphrase encoding"}
	}
	if err := ValidateWorkFactor(params.N); err != nil {
		return nil, err
	}
	if len(params.Salt) != saltLen {
		return nil, &DerivationError{
			Message: fmt.Sprintf("invalid salt size: expected %d bytes, got %d bytes", saltLen, len(params.Salt)),
		}
	}

	key, err := scrypt.Key(passphrase, params.Salt, params.N, params.R, params.P, params.KeyLen)
	if err != nil {
		return nil, &DerivationError{Message: "failed to derive key: " + err.Error(), Err: err}
	}
	return key, nil
}

// ValidateWorkFactor checks that n is a power of two greater than 1, as scrypt
// requires, and no larger than MaxWorkFactor
func ValidateWorkFactor(n int) error {
	if n <= 1 || n&(n-1) != 0 {
		return &DerivationError{Message: fmt.Sprintf("invalid work factor %d: must be a power of two greater than 1", n)}
	}
	if n > MaxWorkFactor {
		return &DerivationError{Message: fmt.Sprintf("invalid work factor %d: must not exceed %d", n, MaxWorkFactor)}
	}
	return nil
}

package crypto

import "errors"

// DerivationError is returned when a passphrase or its parameters cannot
// be turned into a key
type DerivationError struct {
	Message string
	Err     error
}

func (e *DerivationError) Error() string {
	return e.Message
}

func (e *DerivationError) Unwrap() error {
	return e.Err
}

// IsDerivationError checks if error is DerivationError
func IsDerivationError(err error) bool {
	var target *DerivationError
	return errors.As(err, &target)
}

// KeyCrypterError is returned when the wallet key material cannot be
// encrypted or decrypted with the given key
type KeyCrypterError struct {
	Message string
	Err     error
}

func (e *KeyCrypterError) Error() string {
	return e.Message
}

func (e *KeyCrypterError) Unwrap() error {
	return e.Err
}

// IsKeyCrypterError checks if error is KeyCrypterError
func IsKeyCrypterError(err error) bool {
	var target *KeyCrypterError
	return errors.As(err, &target)
}

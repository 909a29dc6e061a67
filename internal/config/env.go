package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/AlexZinkM/wallet-crypter/internal/crypto"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Passphrases are never read from the environment: they come from request
// bodies or are prompted at runtime.
type Config struct {
	Port                   string `envconfig:"PORT" default:"8080"`
	WalletFilePath         string `envconfig:"WALLET_FILE_PATH" required:"true"`
	WalletBackupFilePath   string `envconfig:"WALLET_BACKUP_FILE_PATH"`
	WalletNetwork          string `envconfig:"WALLET_NETWORK" default:"solana"`
	ScryptIterationsTarget int    `envconfig:"SCRYPT_ITERATIONS_TARGET" default:"65536"`
	LogLevel               string `envconfig:"LOG_LEVEL" default:"info"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	if c.WalletFilePath == "" {
		return errors.New("WALLET_FILE_PATH must not be empty")
	}
	if err := crypto.ValidateWorkFactor(c.ScryptIterationsTarget); err != nil {
		return fmt.Errorf("SCRYPT_ITERATIONS_TARGET: %w", err)
	}
	if c.WalletBackupFilePath == "" {
		c.WalletBackupFilePath = c.WalletFilePath + ".bak"
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetWalletFilePath returns path to .cwt file from configuration
func GetWalletFilePath() string {
	return Get().WalletFilePath
}

// GetWalletBackupFilePath returns path to the key backup file
func GetWalletBackupFilePath() string {
	return Get().WalletBackupFilePath
}

// GetScryptIterationsTarget returns the default work factor for new encryptions
func GetScryptIterationsTarget() int {
	return Get().ScryptIterationsTarget
}

// GetLogLevel returns log level from configuration
func GetLogLevel() string {
	return Get().LogLevel
}

// PromptForPassword prompts the user for a passphrase in the terminal.
// The input is read without echoing (hidden input).
// Caller must zero the returned slice after use for security.
func PromptForPassword(label string) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal: run the app interactively to enter password")
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("password cannot be empty")
	}

	out := make([]byte, len(raw))
	copy(out, raw)
	clear(raw)
	return out, nil
}

// PromptForNewPassword prompts twice and fails when the entries differ
func PromptForNewPassword() ([]byte, error) {
	first, err := PromptForPassword("Enter new wallet password")
	if err != nil {
		return nil, err
	}
	second, err := PromptForPassword("Confirm new wallet password")
	if err != nil {
		clear(first)
		return nil, err
	}
	defer clear(second)

	if string(first) != string(second) {
		clear(first)
		return nil, errors.New("passwords do not match")
	}
	return first, nil
}

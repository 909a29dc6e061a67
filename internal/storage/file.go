package storage

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AlexZinkM/wallet-crypter/internal/logging"
	"github.com/AlexZinkM/wallet-crypter/internal/model"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Load when there is no wallet file or it is empty
var ErrNotFound = errors.New("wallet file not found")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const (
	keyLen = 32

	legacyScryptN = 1 << 18
	legacyScryptR = 8
	legacyScryptP = 1
)

// FileStore persists a wallet as a .cwt file plus a key backup file
type FileStore struct {
	path       string
	backupPath string
	log        *zap.Logger
}

// NewFileStore creates a store for the wallet at path.
// backupPath defaults to path + ".bak". log may be nil.
func NewFileStore(path, backupPath string, log *zap.Logger) (*FileStore, error) {
	if filepath.Ext(path) != ".cwt" {
		return nil, errors.New("file must have .cwt extension")
	}
	if backupPath == "" {
		backupPath = path + ".bak"
	}
	return &FileStore{
		path:       path,
		backupPath: backupPath,
		log:        logging.OrNop(log),
	}, nil
}

// Path returns the wallet file path
func (s *FileStore) Path() string { return s.path }

// Load reads the wallet file
func (s *FileStore) Load() (*model.Wallet, error) {
	return readWallet(s.path)
}

// LoadBackup reads the key backup file
func (s *FileStore) LoadBackup() (*model.Wallet, error) {
	return readWallet(s.backupPath)
}

// Save writes the wallet file
func (s *FileStore) Save(w *model.Wallet) error {
	start := time.Now()
	if err := writeWallet(s.path, w); err != nil {
		return err
	}
	s.log.Info("wallet saved", zap.String("path", s.path), zap.Duration("took", time.Since(start)))
	return nil
}

// Backup writes the key backup file
func (s *FileStore) Backup(w *model.Wallet) error {
	start := time.Now()
	if err := writeWallet(s.backupPath, w); err != nil {
		return err
	}
	s.log.Info("wallet backed up", zap.String("path", s.backupPath), zap.Duration("took", time.Since(start)))
	return nil
}

// FlushAndFinalize saves the wallet and refreshes the key backup.
// A failed backup is logged and does not fail the flush.
func (s *FileStore) FlushAndFinalize(w *model.Wallet) error {
	if err := s.Save(w); err != nil {
		return err
	}
	if err := s.Backup(w); err != nil {
		s.log.Error("problem writing wallet backup", zap.String("path", s.backupPath), zap.Error(err))
	}
	return nil
}

func readWallet(path string) (*model.Wallet, error) {
	fileData, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Skip UTF-8 BOM if present
	if len(fileData) >= 3 && fileData[0] == 0xEF && fileData[1] == 0xBB && fileData[2] == 0xBF {
		fileData = fileData[3:]
	}
	if len(fileData) == 0 {
		return nil, ErrNotFound
	}

	var cwtFile model.CWTFile
	if err := json.Unmarshal(fileData, &cwtFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cwt file: %w", err)
	}
	return fromFile(&cwtFile)
}

func writeWallet(path string, w *model.Wallet) error {
	fileData, err := json.MarshalIndent(toFile(w), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cwt file: %w", err)
	}

	// Add UTF-8 BOM for proper display in Windows
	fileDataWithBOM := append(append([]byte{}, utf8BOM...), fileData...)
	defer clear(fileDataWithBOM)
	defer clear(fileData)

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(fileDataWithBOM); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

func toFile(w *model.Wallet) *model.CWTFile {
	f := &model.CWTFile{
		Network:   w.Network,
		Address:   w.Address,
		QR:        w.QR,
		CreatedAt: w.CreatedAt,
	}
	if w.IsEncrypted() {
		f.Salt = base64.StdEncoding.EncodeToString(w.Crypter.Salt)
		f.Nonce = base64.StdEncoding.EncodeToString(w.Nonce)
		f.CipherText = base64.StdEncoding.EncodeToString(w.CipherText)
		f.ScryptN = w.Crypter.N
		f.ScryptR = w.Crypter.R
		f.ScryptP = w.Crypter.P
	} else {
		f.PrivateKey = base64.StdEncoding.EncodeToString(w.PrivateKey)
	}
	return f
}

func fromFile(f *model.CWTFile) (*model.Wallet, error) {
	if _, err := solana.PublicKeyFromBase58(f.Address); err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}

	w := &model.Wallet{
		Network:   f.Network,
		Address:   f.Address,
		QR:        f.QR,
		CreatedAt: f.CreatedAt,
	}

	if f.CipherText == "" {
		key, err := base64.StdEncoding.DecodeString(f.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode private key: %w", err)
		}
		if len(key) == 0 {
			return nil, errors.New("wallet file has neither private key nor cipher text")
		}
		w.PrivateKey = key
		return w, nil
	}

	// Decode salt and nonce
	salt, err := base64.StdEncoding.DecodeString(f.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(f.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(f.CipherText)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	w.Crypter = &model.ScryptParams{
		N:      f.ScryptN,
		R:      f.ScryptR,
		P:      f.ScryptP,
		KeyLen: keyLen,
		Salt:   salt,
	}
	// files written before scrypt parameters were recorded
	if w.Crypter.N == 0 {
		w.Crypter.N, w.Crypter.R, w.Crypter.P = legacyScryptN, legacyScryptR, legacyScryptP
	}
	w.Nonce = nonce
	w.CipherText = ciphertext
	return w, nil
}

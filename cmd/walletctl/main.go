// walletctl manages a local passphrase-encrypted wallet file: it generates
// key material, encrypts it, checks passphrases and serves the HTTP API.
package main

import (
	"os"

	"github.com/AlexZinkM/wallet-crypter/internal/config"
	"github.com/AlexZinkM/wallet-crypter/internal/logging"
	"github.com/AlexZinkM/wallet-crypter/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

// app holds what every subcommand needs once config is loaded
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *storage.FileStore
}

// newRootCmd creates the command tree. Tests build fresh trees with it.
func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "walletctl",
		Short:         "Encrypt a local wallet with a passphrase and verify passphrases against it.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(); err != nil {
				return err
			}
			a.cfg = config.Get()

			log, err := logging.New(a.cfg.LogLevel)
			if err != nil {
				return err
			}
			a.log = log

			store, err := storage.NewFileStore(a.cfg.WalletFilePath, a.cfg.WalletBackupFilePath, log)
			if err != nil {
				return err
			}
			a.store = store
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	cmd.AddCommand(
		newGenerateCmd(a),
		newEncryptCmd(a),
		newCheckCmd(a),
		newMigrateCmd(a),
		newServeCmd(a),
	)
	return cmd
}

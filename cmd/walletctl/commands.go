package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlexZinkM/wallet-crypter/internal/api"
	"github.com/AlexZinkM/wallet-crypter/internal/config"
	"github.com/AlexZinkM/wallet-crypter/internal/coordinator"
	"github.com/AlexZinkM/wallet-crypter/internal/crypto"
	"github.com/AlexZinkM/wallet-crypter/internal/handler"
	"github.com/AlexZinkM/wallet-crypter/internal/model"
	"github.com/AlexZinkM/wallet-crypter/internal/storage"
	"github.com/AlexZinkM/wallet-crypter/solana"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newGenerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a new wallet and save it unencrypted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.store.Load(); err == nil {
				return fmt.Errorf("wallet file %s already exists", a.store.Path())
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			w, err := solana.GenerateWallet()
			if err != nil {
				return err
			}
			defer w.Wipe()
			if err := a.store.FlushAndFinalize(w); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated %s wallet %s\n", w.Network, w.Address)
			return nil
		},
	}
}

func newEncryptCmd(a *app) *cobra.Command {
	var (
		workFactor int
		fromStdin  bool
	)
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt the wallet with a new passphrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workFactor == 0 {
				workFactor = a.cfg.ScryptIterationsTarget
			}
			if err := crypto.ValidateWorkFactor(workFactor); err != nil {
				return err
			}

			pass, err := readPassphrase(cmd.InOrStdin(), fromStdin, config.PromptForNewPassword)
			if err != nil {
				return err
			}
			defer clear(pass)

			c, err := a.coordinator()
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := runOperation(cmd.Context(), c, func() error {
				return c.Encrypt(pass, workFactor)
			})
			if err != nil {
				return err
			}
			if res.Status() == model.StatusError {
				return errors.New(res.Message())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wallet %s encrypted (scrypt N=%d)\n", res.Data().Address, res.Data().Crypter.N)
			res.Data().Wipe()
			return nil
		},
	}
	cmd.Flags().IntVar(&workFactor, "work-factor", 0, "scrypt N, defaults to SCRYPT_ITERATIONS_TARGET")
	cmd.Flags().BoolVar(&fromStdin, "passphrase-stdin", false, "read the passphrase from the first line of stdin")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a passphrase against the encrypted wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := readPassphrase(cmd.InOrStdin(), fromStdin, func() ([]byte, error) {
				return config.PromptForPassword("Enter wallet password")
			})
			if err != nil {
				return err
			}
			defer clear(pass)

			c, err := a.coordinator()
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := runOperation(cmd.Context(), c, func() error {
				return c.CheckPassphrase(pass)
			})
			if err != nil {
				return err
			}
			if res.Status() == model.StatusError {
				return errors.New(res.Message())
			}
			defer res.Data().Wipe()

			if err := solana.VerifyKeyMaterial(res.Data()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "passphrase ok")
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "passphrase-stdin", false, "read the passphrase from the first line of stdin")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite the wallet file with explicit scrypt parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.store.Load()
			if err != nil {
				return err
			}
			defer w.Wipe()

			if err := a.store.Save(w); err != nil {
				return err
			}
			if w.IsEncrypted() {
				fmt.Fprintf(cmd.OutOrStdout(), "wallet %s migrated (scrypt N=%d r=%d p=%d)\n",
					w.Address, w.Crypter.N, w.Crypter.R, w.Crypter.P)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wallet %s migrated (unencrypted)\n", w.Address)
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the wallet HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.store.Load(); errors.Is(err, storage.ErrNotFound) {
				w, err := solana.GenerateWallet()
				if err != nil {
					return err
				}
				if err := a.store.FlushAndFinalize(w); err != nil {
					return err
				}
				a.log.Info("generated new wallet", zap.String("address", w.Address))
				w.Wipe()
			}

			c, err := a.coordinator()
			if err != nil {
				return err
			}
			defer c.Close()

			walletHandler, err := handler.NewWalletHandler(c, a.cfg.ScryptIterationsTarget, a.log)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + a.cfg.Port,
				Handler:           api.SetupRouter(walletHandler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.log.Info("server starting",
					zap.String("port", a.cfg.Port),
					zap.String("swagger", "http://localhost:"+a.cfg.Port+"/swagger/index.html"),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				a.log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

// coordinator loads the wallet file and builds a Coordinator persisting to it
func (a *app) coordinator() (*coordinator.Coordinator, error) {
	w, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	return coordinator.New(w, crypto.NewScryptDeriver(), crypto.NewAESGCMCrypter(), a.store,
		coordinator.WithLogger(a.log))
}

// runOperation starts an operation on a fresh coordinator and waits for its
// terminal envelope
func runOperation(ctx context.Context, c *coordinator.Coordinator, start func() error) (model.Resource[*model.Wallet], error) {
	done := make(chan model.Resource[*model.Wallet], 1)
	sub := c.Subscribe(func(r model.Resource[*model.Wallet]) {
		if !r.IsTerminal() {
			return
		}
		select {
		case done <- r:
		default:
		}
	})
	defer sub.Unsubscribe()

	if err := start(); err != nil {
		return model.Resource[*model.Wallet]{}, err
	}
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return model.Resource[*model.Wallet]{}, ctx.Err()
	}
}

// readPassphrase reads the first line of r when fromStdin is set and
// prompts on the terminal otherwise
func readPassphrase(r io.Reader, fromStdin bool, prompt func() ([]byte, error)) ([]byte, error) {
	if !fromStdin {
		return prompt()
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, errors.New("password cannot be empty")
	}
	return []byte(line), nil
}

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallet.cwt")
	t.Setenv("WALLET_FILE_PATH", path)
	t.Setenv("WALLET_BACKUP_FILE_PATH", "")
	t.Setenv("SCRYPT_ITERATIONS_TARGET", "16")
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"generate", "encrypt", "check", "migrate", "serve"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_RequiresWalletPath(t *testing.T) {
	t.Setenv("WALLET_FILE_PATH", "")
	_, err := execute(t, "", "migrate")
	assert.Error(t, err)
}

func TestWalletLifecycle(t *testing.T) {
	path := setupEnv(t)

	out, err := execute(t, "", "generate")
	require.NoError(t, err)
	assert.Contains(t, out, "generated solana wallet")
	assert.FileExists(t, path)
	assert.FileExists(t, path+".bak")

	_, err = execute(t, "", "generate")
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "correct horse\n", "encrypt", "--passphrase-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "scrypt N=16")

	_, err = execute(t, "other\n", "encrypt", "--passphrase-stdin")
	assert.ErrorContains(t, err, "wallet is already encrypted")

	_, err = execute(t, "wrong\n", "check", "--passphrase-stdin")
	assert.ErrorContains(t, err, "decryption failed")

	out, err = execute(t, "correct horse\n", "check", "--passphrase-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "passphrase ok")

	// check leaves the file encrypted
	out, err = execute(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "scrypt N=16 r=8 p=1")
}

func TestEncrypt_RejectsBadWorkFactor(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "", "generate")
	require.NoError(t, err)

	_, err = execute(t, "pw\n", "encrypt", "--passphrase-stdin", "--work-factor", "1000")
	assert.Error(t, err)
}

func TestReadPassphrase(t *testing.T) {
	pass, err := readPassphrase(strings.NewReader("secret\r\nignored\n"), true, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), pass)

	pass, err = readPassphrase(strings.NewReader("no newline"), true, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("no newline"), pass)

	_, err = readPassphrase(strings.NewReader("\n"), true, nil)
	assert.Error(t, err)

	pass, err = readPassphrase(nil, false, func() ([]byte, error) { return []byte("prompted"), nil })
	require.NoError(t, err)
	assert.Equal(t, []byte("prompted"), pass)
}

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AlexZinkM/wallet-crypter/internal/coordinator"
	"github.com/AlexZinkM/wallet-crypter/internal/crypto"
	"github.com/AlexZinkM/wallet-crypter/internal/handler"
	"github.com/AlexZinkM/wallet-crypter/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopPersister struct{}

func (nopPersister) FlushAndFinalize(*model.Wallet) error { return nil }

func TestSetupRouter(t *testing.T) {
	wallet := &model.Wallet{Address: "addr", PrivateKey: bytes.Repeat([]byte{1}, 64)}
	c, err := coordinator.New(wallet, crypto.NewScryptDeriver(), crypto.NewAESGCMCrypter(), nopPersister{})
	require.NoError(t, err)
	defer c.Close()

	h, err := handler.NewWalletHandler(c, 16, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(SetupRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/wallet/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/wallet/encrypt", "application/json", strings.NewReader(`{"passphrase":"pw"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	c.Wait()

	resp, err = http.Get(srv.URL + "/swagger/doc.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

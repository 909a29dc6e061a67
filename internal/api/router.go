package api

import (
	"net/http"

	_ "github.com/AlexZinkM/wallet-crypter/internal/docs" // registers swagger docs
	"github.com/AlexZinkM/wallet-crypter/internal/handler"

	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter sets up router with handlers
func SetupRouter(walletHandler *handler.WalletHandler) http.Handler {
	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Wallet endpoints
	mux.HandleFunc("/wallet/encrypt", walletHandler.Encrypt)
	mux.HandleFunc("/wallet/check", walletHandler.CheckPassphrase)
	mux.HandleFunc("/wallet/state", walletHandler.State)
	mux.HandleFunc("/wallet/events", walletHandler.Events)

	return mux
}

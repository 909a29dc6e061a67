package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/AlexZinkM/wallet-crypter/internal/coordinator"
	"github.com/AlexZinkM/wallet-crypter/internal/logging"
	"github.com/AlexZinkM/wallet-crypter/internal/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	eventsBuffer = 16
	writeTimeout = 10 * time.Second
)

// WalletHandler exposes the wallet coordinator over HTTP
type WalletHandler struct {
	coordinator       *coordinator.Coordinator
	defaultWorkFactor int
	log               *zap.Logger
	upgrader          websocket.Upgrader
}

// NewWalletHandler creates a new WalletHandler. defaultWorkFactor is used
// when an encrypt request does not name one.
func NewWalletHandler(c *coordinator.Coordinator, defaultWorkFactor int, log *zap.Logger) (*WalletHandler, error) {
	if c == nil {
		return nil, errors.New("coordinator is required")
	}
	return &WalletHandler{
		coordinator:       c,
		defaultWorkFactor: defaultWorkFactor,
		log:               logging.OrNop(log),
	}, nil
}

// Encrypt handles POST /wallet/encrypt
// @Summary      Encrypt wallet
// @Description  Starts encrypting the wallet key material with a key derived from the passphrase. Progress is reported on /wallet/state and /wallet/events
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.EncryptRequest  true  "Passphrase and scrypt work factor"
// @Success      202      {object}  model.AcceptedResponse
// @Failure      400      {object}  model.ErrorResponse
// @Failure      503      {object}  model.ErrorResponse
// @Router       /wallet/encrypt [post]
func (h *WalletHandler) Encrypt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.EncryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	workFactor := req.WorkFactor
	if workFactor == 0 {
		workFactor = h.defaultWorkFactor
	}

	// Get password as []byte, hand it over, then zero it immediately
	passphrase := []byte(req.Passphrase)
	defer clear(passphrase) // Always clear password from memory

	err := h.coordinator.Encrypt(passphrase, workFactor)
	writeAccepted(w, err, "wallet encryption started", "wallet encryption already in progress")
}

// CheckPassphrase handles POST /wallet/check
// @Summary      Check passphrase
// @Description  Verifies the passphrase by decrypting the wallet. On success the wallet is left decrypted
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.CheckPassphraseRequest  true  "Passphrase"
// @Success      202      {object}  model.AcceptedResponse
// @Failure      400      {object}  model.ErrorResponse
// @Failure      503      {object}  model.ErrorResponse
// @Router       /wallet/check [post]
func (h *WalletHandler) CheckPassphrase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.CheckPassphraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	passphrase := []byte(req.Passphrase)
	defer clear(passphrase)

	err := h.coordinator.CheckPassphrase(passphrase)
	writeAccepted(w, err, "passphrase check started", "passphrase check already in progress")
}

// State handles GET /wallet/state
// @Summary      Wallet operation state
// @Description  Returns the latest encrypt or passphrase check state. Never includes key material
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.WalletStateResponse
// @Router       /wallet/state [get]
func (h *WalletHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	cur, _ := h.coordinator.State().Current()
	resp := model.NewWalletStateResponse(cur)
	if cur.IsZero() {
		wallet := h.coordinator.Wallet()
		encrypted := wallet.IsEncrypted()
		resp.Network = wallet.Network
		resp.Address = wallet.Address
		resp.Encrypted = &encrypted
	}
	writeJSON(w, http.StatusOK, resp)
}

// Events handles GET /wallet/events
// @Summary      Wallet operation events
// @Description  Websocket stream of wallet operation states. The latest state is sent first
// @Tags         wallet
// @Produce      json
// @Success      101  {object}  model.WalletStateResponse
// @Router       /wallet/events [get]
func (h *WalletHandler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events := make(chan model.Resource[*model.Wallet], eventsBuffer)
	sub := h.coordinator.Subscribe(func(res model.Resource[*model.Wallet]) {
		select {
		case events <- res:
		default:
			h.log.Warn("dropped wallet event for slow websocket client", zap.String("remote", r.RemoteAddr))
		}
	})
	defer sub.Unsubscribe()

	// The client sends nothing; reading detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case res := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(model.NewWalletStateResponse(res)); err != nil {
				h.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeAccepted(w http.ResponseWriter, err error, started, busy string) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, model.AcceptedResponse{Accepted: true, Message: started})
	case errors.Is(err, coordinator.ErrAlreadyInProgress):
		writeJSON(w, http.StatusAccepted, model.AcceptedResponse{Accepted: false, Message: busy})
	case errors.Is(err, coordinator.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, model.ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package model

// EncryptRequest represents request body for POST /wallet/encrypt
type EncryptRequest struct {
	Passphrase string `json:"passphrase"`
	WorkFactor int    `json:"workFactor,omitempty"` // scrypt N, configured target when omitted
}

// CheckPassphraseRequest represents request body for POST /wallet/check
type CheckPassphraseRequest struct {
	Passphrase string `json:"passphrase"`
}

// AcceptedResponse represents response for POST /wallet/encrypt and /wallet/check.
// Accepted is false when an operation of the same kind is still running.
type AcceptedResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// WalletStateResponse represents the latest operation state for GET /wallet/state
// and each message on /wallet/events. Key material is never included.
type WalletStateResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Network    string `json:"network,omitempty"`
	Address    string `json:"address,omitempty"`
	Encrypted  *bool  `json:"encrypted,omitempty"`
	WorkFactor int    `json:"workFactor,omitempty"`
}

// NewWalletStateResponse converts a wallet envelope into its API form
func NewWalletStateResponse(r Resource[*Wallet]) WalletStateResponse {
	if r.IsZero() {
		return WalletStateResponse{Status: "idle"}
	}

	resp := WalletStateResponse{
		Status:  r.Status().String(),
		Message: r.Message(),
	}
	if w := r.Data(); w != nil {
		encrypted := w.IsEncrypted()
		resp.Network = w.Network
		resp.Address = w.Address
		resp.Encrypted = &encrypted
		if encrypted {
			resp.WorkFactor = w.Crypter.N
		}
	}
	return resp
}

package connections

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// StateData rides the OAuth redirect and carries the initiating user's
// identity into the public callback.
type StateData struct {
	UserID    uint   `json:"user_id"`
	ReturnURL string `json:"return_url"`
	Nonce     string `json:"nonce"`
}

var errInvalidState = errors.New("invalid state")

// signState serializes the state and appends an HMAC-SHA256 tag. The
// callback route is unauthenticated, so the tag is the only thing binding
// the user ID inside the state to this server.
func (h *Handler) signState(data StateData) string {
	payload, _ := json.Marshal(data)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + h.stateTag(payload)
}

// verifyState checks the HMAC tag before trusting anything in the payload.
func (h *Handler) verifyState(state string) (*StateData, error) {
	encoded, tag, ok := strings.Cut(state, ".")
	if !ok {
		return nil, errInvalidState
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errInvalidState
	}
	if !hmac.Equal([]byte(tag), []byte(h.stateTag(payload))) {
		return nil, errInvalidState
	}
	var data StateData
	if err := json.Unmarshal(payload, &data); err != nil || data.UserID == 0 {
		return nil, errInvalidState
	}
	return &data, nil
}

func (h *Handler) stateTag(payload []byte) string {
	mac := hmac.New(sha256.New, h.stateSecret)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func generateNonce(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

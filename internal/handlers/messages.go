package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sealbox-protocol/sealbox/internal/api/middleware"
	"github.com/sealbox-protocol/sealbox/internal/metrics"
	"github.com/sealbox-protocol/sealbox/internal/models"
	"github.com/sealbox-protocol/sealbox/internal/store"
)

// SendMessageRequest represents the send-message request body. All three
// fields are hex and opaque to the relay; authentication of the ciphertext
// happens at the recipient's decryption step, never here.
type SendMessageRequest struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
}

// SendMessageResponse represents the send-message response.
type SendMessageResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// MessageView represents a relayed message in API responses.
type MessageView struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
	Timestamp  int64  `json:"ts"`
}

// MessageListResponse represents the message list response.
type MessageListResponse struct {
	Messages []MessageView `json:"messages"`
}

// SendMessage relays an encrypted message to the session's other party. The
// recipient is always derived from the session, so a sender cannot redirect
// a message outside the exchange.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "id")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Ciphertext == "" || req.IV == "" || req.AuthTag == "" {
		h.Error(w, http.StatusBadRequest, "ciphertext, iv and auth_tag are required")
		return
	}

	sess, _, err := h.sessions.Get(sessionID, p.ID)
	if err != nil {
		h.StoreError(w, err)
		return
	}
	switch sess.Status {
	case models.StatusActive:
		// ok
	case models.StatusExpired:
		h.StoreError(w, store.ErrGone)
		return
	default:
		h.StoreError(w, store.ErrInvalidState)
		return
	}

	msg := h.messages.Append(&models.EncryptedMessage{
		SessionID:  sessionID,
		FromID:     p.ID,
		ToID:       sess.Counterpart(p.ID),
		Ciphertext: req.Ciphertext,
		IV:         req.IV,
		AuthTag:    req.AuthTag,
	})
	metrics.MessagesRelayed.Inc()

	h.JSON(w, http.StatusCreated, SendMessageResponse{
		ID:        msg.ID,
		Timestamp: msg.Timestamp,
	})
}

// GetMessages returns the messages addressed to the requester within a
// session, oldest first. The read is non-consuming: repeated calls return
// the same history until new messages arrive.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "id")

	if _, _, err := h.sessions.Get(sessionID, p.ID); err != nil {
		h.StoreError(w, err)
		return
	}

	msgs := h.messages.For(sessionID, p.ID)
	views := make([]MessageView, len(msgs))
	for i, msg := range msgs {
		views[i] = MessageView{
			ID:         msg.ID,
			From:       msg.FromID,
			Ciphertext: msg.Ciphertext,
			IV:         msg.IV,
			AuthTag:    msg.AuthTag,
			Timestamp:  msg.Timestamp,
		}
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: views})
}

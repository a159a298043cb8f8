package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sealbox-protocol/sealbox/internal/api/middleware"
	"github.com/sealbox-protocol/sealbox/internal/metrics"
	"github.com/sealbox-protocol/sealbox/internal/models"
	"github.com/sealbox-protocol/sealbox/internal/notify"
)

// CreateSessionRequest represents the create-session request body.
type CreateSessionRequest struct {
	SellerID string `json:"seller_id"`
	BuyerID  string `json:"buyer_id"`
	Subject  string `json:"subject"`
}

// GroupParams carries the group description handed to both parties.
type GroupParams struct {
	Prime     string `json:"prime"`
	Generator string `json:"generator"`
}

// CreateSessionResponse represents the create-session response.
type CreateSessionResponse struct {
	SessionID string        `json:"session_id"`
	Params    GroupParams   `json:"params"`
	Status    models.Status `json:"status"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// SubmitKeyRequest represents the submit-key request body.
type SubmitKeyRequest struct {
	Role      string `json:"role"`
	PublicKey string `json:"public_key"` // hex
}

// SubmitKeyResponse represents the submit-key response. The counterpart's
// public value rides along when it is already known, so a party that starts
// listening late does not depend on a push event it may have missed.
type SubmitKeyResponse struct {
	Status               models.Status `json:"status"`
	CounterpartPublicKey string        `json:"counterpart_public_key,omitempty"`
}

// SessionView is the full session as seen by one of its parties.
type SessionView struct {
	SessionID   string        `json:"session_id"`
	Role        models.Role   `json:"role"`
	Counterpart string        `json:"counterpart"`
	Subject     string        `json:"subject"`
	Params      GroupParams   `json:"params"`
	OwnKey      string        `json:"own_key,omitempty"`
	TheirKey    string        `json:"counterpart_key,omitempty"`
	Status      models.Status `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// SessionSummary is one row of the my-sessions listing.
type SessionSummary struct {
	SessionID   string        `json:"session_id"`
	Role        models.Role   `json:"role"`
	Counterpart string        `json:"counterpart"`
	Subject     string        `json:"subject"`
	Status      models.Status `json:"status"`
	Unread      int           `json:"unread"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// SessionListResponse represents the my-sessions response.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// CreateSession starts a key exchange, or returns the live session already
// covering the same (seller, buyer, subject) triple.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sess, created, err := h.sessions.Create(req.SellerID, req.BuyerID, req.Subject, p.ID)
	if err != nil {
		h.StoreError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		metrics.SessionsCreated.Inc()
		h.publish(sess.Counterpart(p.ID), notify.EventSessionCreated, map[string]any{
			"session_id": sess.ID,
			"subject":    sess.Subject,
		})
	}

	h.JSON(w, status, CreateSessionResponse{
		SessionID: sess.ID,
		Params:    GroupParams{Prime: sess.Prime, Generator: sess.Generator},
		Status:    sess.Status,
		ExpiresAt: sess.ExpiresAt,
	})
}

// SubmitKey stores the caller's public value and pushes the resulting state
// transition to the parties.
func (h *Handler) SubmitKey(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "id")

	var req SubmitKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PublicKey == "" {
		h.Error(w, http.StatusBadRequest, "public_key is required")
		return
	}

	res, err := h.sessions.SubmitKey(sessionID, p.ID, role, req.PublicKey)
	if err != nil {
		h.StoreError(w, err)
		return
	}
	metrics.KeysSubmitted.WithLabelValues(string(role)).Inc()

	// The store decides the activation outcome inside its critical section,
	// so the session-active pair goes out exactly once even when both
	// parties submit at the same instant.
	if res.Activated {
		metrics.SessionsActivated.Inc()
		payload := map[string]any{"session_id": sessionID, "status": res.Status}
		h.publish(res.SellerID, notify.EventSessionActive, payload)
		h.publish(res.BuyerID, notify.EventSessionActive, payload)
	} else if res.Status == models.StatusPending {
		h.publish(res.CounterpartID, notify.EventKeySubmitted, map[string]any{
			"session_id": sessionID,
			"role":       role,
		})
	}

	h.JSON(w, http.StatusOK, SubmitKeyResponse{
		Status:               res.Status,
		CounterpartPublicKey: res.CounterpartKey,
	})
}

// GetSession returns the full session view scoped to the requester.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sess, role, err := h.sessions.Get(chi.URLParam(r, "id"), p.ID)
	if err != nil {
		h.StoreError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, SessionView{
		SessionID:   sess.ID,
		Role:        role,
		Counterpart: sess.Counterpart(p.ID),
		Subject:     sess.Subject,
		Params:      GroupParams{Prime: sess.Prime, Generator: sess.Generator},
		OwnKey:      sess.KeyFor(role),
		TheirKey:    sess.KeyFor(role.Other()),
		Status:      sess.Status,
		CreatedAt:   sess.CreatedAt,
		ExpiresAt:   sess.ExpiresAt,
	})
}

// ListMySessions returns every non-expired session the caller is a party to,
// with a live unread count per session.
func (h *Handler) ListMySessions(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessions := h.sessions.ListFor(p.ID)
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		role, _ := sess.PartyRole(p.ID)
		summaries = append(summaries, SessionSummary{
			SessionID:   sess.ID,
			Role:        role,
			Counterpart: sess.Counterpart(p.ID),
			Subject:     sess.Subject,
			Status:      sess.Status,
			Unread:      h.messages.CountFor(sess.ID, p.ID),
			ExpiresAt:   sess.ExpiresAt,
		})
	}

	h.JSON(w, http.StatusOK, SessionListResponse{Sessions: summaries})
}

// publish fans an event out and keeps the delivery counters honest.
func (h *Handler) publish(userID, eventType string, data any) {
	delivered := h.bus.Publish(userID, eventType, data)
	if delivered == 0 {
		metrics.EventsDropped.Inc()
		return
	}
	metrics.EventsDelivered.WithLabelValues(eventType).Add(float64(delivered))
}

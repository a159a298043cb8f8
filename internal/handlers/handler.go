package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sealbox-protocol/sealbox/internal/notify"
	"github.com/sealbox-protocol/sealbox/internal/store"
	"github.com/sealbox-protocol/sealbox/internal/sweeper"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	sessions *store.SessionStore
	messages *store.MessageStore
	bus      *notify.Bus
	catalog  store.Catalog // may be nil
	sweeper  *sweeper.Sweeper
}

// NewHandler creates a new Handler with the given collaborators.
func NewHandler(sessions *store.SessionStore, messages *store.MessageStore, bus *notify.Bus, catalog store.Catalog, sw *sweeper.Sweeper) *Handler {
	return &Handler{
		sessions: sessions,
		messages: messages,
		bus:      bus,
		catalog:  catalog,
		sweeper:  sw,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// StoreError maps the store's error taxonomy onto HTTP responses. Messages
// are fixed strings so nothing about internal state leaks to the caller.
func (h *Handler) StoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		h.Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, store.ErrForbidden):
		h.Error(w, http.StatusForbidden, "not a party to this session")
	case errors.Is(err, store.ErrInvalidState):
		h.Error(w, http.StatusConflict, "session is not active")
	case errors.Is(err, store.ErrGone):
		h.Error(w, http.StatusGone, "session expired")
	default:
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

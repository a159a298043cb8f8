package handlers

import "net/http"

// CleanupResponse represents the cleanup response.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// StatsResponse represents the stats endpoint response.
type StatsResponse struct {
	TotalSessions          int `json:"total_sessions"`
	ActiveSessions         int `json:"active_sessions"`
	PendingSessions        int `json:"pending_sessions"`
	TotalEncryptedMessages int `json:"total_encrypted_messages"`
}

// Cleanup runs a sweep synchronously and reports how many sessions were
// removed. Privileged: the router wraps this in the admin-token check.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	removed := h.sweeper.Sweep(r.Context())
	h.JSON(w, http.StatusOK, CleanupResponse{Removed: removed})
}

// Stats reports a census of the exchange and relay stores. Privileged.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts := h.sessions.Counts()
	h.JSON(w, http.StatusOK, StatsResponse{
		TotalSessions:          counts.Total,
		ActiveSessions:         counts.Active,
		PendingSessions:        counts.Pending,
		TotalEncryptedMessages: h.messages.Total(),
	})
}

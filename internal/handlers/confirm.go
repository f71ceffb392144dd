package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/booksnap/booksnap/internal/models"
)

// HandleConfirm records the book a scan actually showed, so the next scan
// of the same cover is answered from the cache. A book in the request
// overrides the one the scan found.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		ScanID string             `json:"scan_id"`
		Book   *models.BookRecord `json:"book"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	session, ok := h.getSessionOrError(w, request.ScanID)
	if !ok {
		return
	}
	if session.Result == nil || session.Result.Text == "" {
		h.writeError(w, "Scan has no recognized text to confirm", http.StatusBadRequest)
		return
	}

	book := request.Book
	if book == nil {
		book = session.Result.Book
	}
	if book == nil {
		h.writeError(w, "book is required when the scan found none", http.StatusBadRequest)
		return
	}

	entry, err := h.scanner.Confirm(r.Context(), session.Result.Text, *book)
	if err != nil {
		h.writeError(w, "Failed to confirm scan: "+err.Error(), statusFor(err))
		return
	}
	h.sessionStore.Update(session.ID, func(s *models.ScanSession) { s.Confirmed = true })

	h.writeJSON(w, map[string]any{
		"scan_id":  session.ID,
		"entry_id": entry.ID,
		"message":  "Recognition saved",
	})
}

// handleReject handles POST /api/scans/{id}/reject: the cache answer for the
// scan was wrong, so its entry stops matching.
func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}
	if session.Result == nil || session.Result.CacheEntryID == "" {
		h.writeError(w, "Scan was not answered from the cache", http.StatusBadRequest)
		return
	}

	entryID := session.Result.CacheEntryID
	if err := h.scanner.Reject(r.Context(), entryID); err != nil {
		h.writeError(w, "Failed to reject scan: "+err.Error(), statusFor(err))
		return
	}
	h.sessionStore.Update(session.ID, func(s *models.ScanSession) { s.Rejected = true })

	h.writeJSON(w, map[string]any{
		"scan_id":  session.ID,
		"entry_id": entryID,
		"message":  "Cached recognition rejected",
	})
}

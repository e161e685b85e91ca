// Package http provides HTTP routing and handlers for the puppy class API.
package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kpisonic1/puppyclass/internal/models"
	"github.com/kpisonic1/puppyclass/internal/service"
)

// maxUploadSize bounds an in-memory multipart parse, photo included.
const maxUploadSize = 10 << 20

// SessionService defines the interface for session operations required by
// the SessionHandler.
type SessionService interface {
	// Create stores a new session submission and returns the stored record.
	Create(ctx context.Context, in service.SessionInput) (models.Session, error)
	// List returns all stored sessions, newest first.
	List(ctx context.Context) ([]models.Session, error)
}

// SessionHandler handles HTTP requests for session storage and listing.
type SessionHandler struct {
	SessionService SessionService
}

// Create handles POST /api/sessions. It expects a multipart form with the
// fields id, ts, breed, notes and the sessionPhoto file. Missing id or photo
// yields 400.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeResult(w, http.StatusBadRequest, false, "")
		return
	}

	id := r.FormValue("id")
	file, header, err := r.FormFile("sessionPhoto")
	if id == "" || err != nil {
		writeResult(w, http.StatusBadRequest, false, "")
		return
	}
	defer file.Close()

	photo, err := io.ReadAll(file)
	if err != nil {
		writeResult(w, http.StatusInternalServerError, false, "")
		return
	}

	saved, err := h.SessionService.Create(r.Context(), service.SessionInput{
		ID:        id,
		TS:        r.FormValue("ts"),
		Breed:     r.FormValue("breed"),
		Notes:     r.FormValue("notes"),
		PhotoName: header.Filename,
		Photo:     photo,
	})
	if err != nil {
		writeResult(w, http.StatusInternalServerError, false, "")
		return
	}

	writeResult(w, http.StatusOK, true, saved.ID)
}

// List handles GET /api/sessions. Failures degrade to an empty list so the
// consumer always receives a parseable array.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.SessionService.List(r.Context())
	if err != nil || sessions == nil {
		sessions = []models.Session{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sessions)
}

func writeResult(w http.ResponseWriter, status int, success bool, id string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := map[string]any{"success": success}
	if id != "" {
		body["id"] = id
	}
	_ = json.NewEncoder(w).Encode(body)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/gesture"
)

type startRecordingRequest struct {
	GestureID   string `json:"gesture_id"`
	GestureName string `json:"gesture_name"`
}

// handleRecording routes /api/recording and /api/recording/{action}.
// GET on the bare path returns the session snapshot; the actions are
// start, stop, discard, another, and finalize.
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/recording")
	action = strings.TrimPrefix(action, "/")

	if action == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, s.config.Engine.Session())
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "start":
		s.startRecording(w, r)
	case "stop":
		s.engineAction(w, s.config.Engine.StopRecording)
	case "discard":
		s.engineAction(w, s.config.Engine.DiscardLastRepetition)
	case "another":
		s.engineAction(w, s.config.Engine.RecordAnother)
	case "finalize":
		s.finalizeRecording(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// startRecording handles POST /api/recording/start.
func (s *Server) startRecording(w http.ResponseWriter, r *http.Request) {
	var req startRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.engineAction(w, func() error {
		return s.config.Engine.StartRecording(req.GestureID, req.GestureName)
	})
}

// finalizeRecording handles POST /api/recording/finalize: commits the
// session as a new gesture built from the captured repetitions.
func (s *Server) finalizeRecording(w http.ResponseWriter, r *http.Request) {
	built, err := s.config.Engine.FinalizeRecording(nil)
	if err != nil {
		switch {
		case errors.Is(err, gesture.ErrInvalidInput), errors.Is(err, gesture.ErrDuplicateID):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to finalize recording")
		}
		return
	}
	s.persist(w)
	writeJSON(w, http.StatusCreated, toResponse(built))
}

// engineAction runs a state-changing engine call and maps failures to
// 409, which covers the disposed engine and session-state conflicts.
func (s *Server) engineAction(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

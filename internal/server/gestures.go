package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/gesture"
)

type createGestureRequest struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Classifier  string                 `json:"classifier"`
	Rule        *gesture.ThresholdRule `json:"rule,omitempty"`
	Templates   []*gesture.Template    `json:"templates,omitempty"`
	MaxDistance float64                `json:"max_distance"`
	CooldownMs  int64                  `json:"cooldown_ms"`
}

type gestureResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Classifier  string                 `json:"classifier"`
	Rule        *gesture.ThresholdRule `json:"rule,omitempty"`
	Templates   int                    `json:"templates"`
	MaxDistance float64                `json:"max_distance"`
	CooldownMs  int64                  `json:"cooldown_ms"`
	Enabled     bool                   `json:"enabled"`
}

type listGesturesResponse struct {
	Gestures []gestureResponse `json:"gestures"`
}

func toResponse(def *gesture.Definition) gestureResponse {
	return gestureResponse{
		ID:          def.ID,
		Name:        def.Name,
		Classifier:  string(def.Classifier),
		Rule:        def.Rule,
		Templates:   len(def.Templates),
		MaxDistance: def.MaxDistance,
		CooldownMs:  def.CooldownMs,
		Enabled:     def.Enabled,
	}
}

// handleGestures routes /api/gestures and /api/gestures/{id}.
func (s *Server) handleGestures(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/gestures")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			s.listGestures(w, r)
		case http.MethodPost:
			s.createGesture(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodDelete:
		s.deleteGesture(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// listGestures handles GET /api/gestures.
func (s *Server) listGestures(w http.ResponseWriter, r *http.Request) {
	defs := s.config.Engine.Gestures()

	response := listGesturesResponse{
		Gestures: make([]gestureResponse, 0, len(defs)),
	}
	for _, def := range defs {
		response.Gestures = append(response.Gestures, toResponse(def))
	}

	writeJSON(w, http.StatusOK, response)
}

// createGesture handles POST /api/gestures.
func (s *Server) createGesture(w http.ResponseWriter, r *http.Request) {
	var req createGestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	def := &gesture.Definition{
		ID:          req.ID,
		Name:        req.Name,
		Classifier:  gesture.Classifier(req.Classifier),
		Rule:        req.Rule,
		Templates:   req.Templates,
		MaxDistance: req.MaxDistance,
		CooldownMs:  req.CooldownMs,
		Enabled:     true,
	}

	if err := s.config.Engine.RegisterGesture(def); err != nil {
		switch {
		case errors.Is(err, gesture.ErrDuplicateID):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, gesture.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to register gesture")
		}
		return
	}

	s.persist(w)
	writeJSON(w, http.StatusCreated, toResponse(def))
}

// deleteGesture handles DELETE /api/gestures/{id}. Deleting an unknown
// id succeeds, mirroring the engine semantics.
func (s *Server) deleteGesture(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.config.Engine.RemoveGesture(id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove gesture")
		return
	}
	s.persist(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleExport handles GET /api/library/export.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.Engine.ExportLibrary())
}

// handleImport handles POST /api/library/import.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var snap gesture.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid snapshot")
		return
	}

	if err := s.config.Engine.ImportLibrary(snap); err != nil {
		if errors.Is(err, gesture.ErrImportRejected) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to import library")
		return
	}

	s.persist(w)
	w.WriteHeader(http.StatusNoContent)
}

// persist writes the current library snapshot through the store, when
// one is configured. Persistence failures are reported but do not roll
// back the in-memory change.
func (s *Server) persist(w http.ResponseWriter) {
	if s.config.Store == nil {
		return
	}
	if err := s.config.Store.SaveSnapshot(s.config.Engine.ExportLibrary()); err != nil {
		w.Header().Set("X-Persist-Error", err.Error())
	}
}

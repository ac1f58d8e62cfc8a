package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/imu"
)

type feedSamplesRequest struct {
	Samples []imu.Sample `json:"samples"`
}

type feedSamplesResponse struct {
	Accepted int `json:"accepted"`
}

// handleSamples handles POST /api/samples, the live ingestion route.
// Samples must arrive in increasing timestamp order; the engine never
// reorders.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req feedSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}

	if err := s.config.Engine.FeedSamples(req.Samples); err != nil {
		if errors.Is(err, engine.ErrDisposed) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to feed samples")
		return
	}

	writeJSON(w, http.StatusAccepted, feedSamplesResponse{Accepted: len(req.Samples)})
}

package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.sess.Snapshot())
}

func (s *Server) handleRelease(w http.ResponseWriter, _ *http.Request) {
	s.sess.RequestRelease()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "release requested"})
}

// tuningRequest carries runtime tuning deltas. Both fields are optional.
type tuningRequest struct {
	DistanceThresholdDelta *float64 `json:"distance_threshold_delta"`
	DeadZoneDelta          *float64 `json:"dead_zone_delta"`
}

func (s *Server) handleTuning(w http.ResponseWriter, r *http.Request) {
	var req tuningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DistanceThresholdDelta == nil && req.DeadZoneDelta == nil {
		respondError(w, http.StatusBadRequest, "no tuning delta given")
		return
	}

	result := map[string]float64{}
	if req.DistanceThresholdDelta != nil {
		result["distance_threshold"] = s.sess.AdjustDistanceThreshold(*req.DistanceThresholdDelta)
	}
	if req.DeadZoneDelta != nil {
		result["dead_zone"] = s.sess.AdjustDeadZone(*req.DeadZoneDelta)
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	if s.snapshots == nil {
		respondError(w, http.StatusNotFound, "snapshot rendering not enabled")
		return
	}
	png, err := s.snapshots.Render(s.sess.Snapshot(), s.sess.DeadZone())
	if err != nil {
		s.logger.WithError(err).Error("could not render snapshot")
		respondError(w, http.StatusInternalServerError, "could not render snapshot")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// handleEvents streams session events as SSE until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := s.hub.addListener()
	defer s.hub.removeListener(ch)

	sendSSEEvent(w, flusher, "status", s.sess.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, ev.Type, ev)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

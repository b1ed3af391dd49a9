package server

import (
	"encoding/base64"
	"net/http"
)

func (s *Server) handleWeightHistory(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	logs, err := s.svc.Weight.History(r.Context(), userID(r), page)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"logs":    logs,
		"page":    page,
	})
}

func (s *Server) handleLogWeight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WeightKg float64 `json:"weight_kg"`
		Note     string  `json:"note"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	l, err := s.svc.Weight.Log(r.Context(), userID(r), req.WeightKg, req.Note)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "log", l)
}

func (s *Server) handleWeightStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Weight.Statistics(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "stats", st)
}

func (s *Server) handleWeightChart(w http.ResponseWriter, r *http.Request) {
	png, err := s.svc.Weight.Chart(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"content_type": "image/png",
		"chart":        base64.StdEncoding.EncodeToString(png),
	})
}

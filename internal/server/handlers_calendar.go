package server

import (
	"net/http"
	"time"

	"github.com/fittrack/fittrack/internal/calendar"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r, s.opts.Location, time.Now())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	events, err := s.svc.Calendar.List(r.Context(), userID(r), start, end)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "events", events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in calendar.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	e, err := s.svc.Calendar.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "event", e)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var in calendar.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	e, err := s.svc.Calendar.Update(r.Context(), userID(r), id, in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "event", e)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.svc.Calendar.Delete(r.Context(), userID(r), id); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "", nil)
}

// handleCompleteEvent takes an optional {"occurrence_start": ...} body that
// selects the occurrence of a recurring event.
func (s *Server) handleCompleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var req struct {
		OccurrenceStart *time.Time `json:"occurrence_start"`
	}
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	c, err := s.svc.Calendar.Complete(r.Context(), userID(r), id, req.OccurrenceStart)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Event completed",
		"event":   c.Event,
		"session": c.Session,
	})
}

func (s *Server) handleSyncCalendar(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Calendar.SyncWorkoutStats(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "synced_count", n)
}

package server

import (
	"net/http"

	"github.com/fittrack/fittrack/internal/workout"
)

func (s *Server) handleStartWorkout(w http.ResponseWriter, r *http.Request) {
	planID, err := pathInt(r, "planID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	session, err := s.svc.Workouts.Start(r.Context(), userID(r), planID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "session", session)
}

func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.Workouts.Active(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "session", session)
}

func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Workouts.Abandon(r.Context(), userID(r)); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "", nil)
}

func (s *Server) handleSaveSet(w http.ResponseWriter, r *http.Request) {
	var in workout.SetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	set, session, err := s.svc.Workouts.SaveSet(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"set":     set,
		"session": session,
	})
}

func (s *Server) handleSaveWorkout(w http.ResponseWriter, r *http.Request) {
	planID, err := pathInt(r, "planID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var req struct {
		Sets []workout.SetInput `json:"sets"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	session, err := s.svc.Workouts.SaveSets(r.Context(), userID(r), planID, req.Sets)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "session", session)
}

func (s *Server) handleCompleteWorkout(w http.ResponseWriter, r *http.Request) {
	planID, err := pathInt(r, "planID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	c, err := s.svc.Workouts.Complete(r.Context(), userID(r), planID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Workout completed",
		"session":       c.Session,
		"exercise_logs": c.ExerciseLogs,
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	sessions, err := s.svc.Workouts.History(r.Context(), userID(r), page)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": sessions,
		"page":     page,
	})
}

func (s *Server) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "sessionID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	d, err := s.svc.Workouts.Detail(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"session":   d.Session,
		"exercises": d.Exercises,
	})
}

func (s *Server) handleSessionProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "sessionID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	p, err := s.svc.Workouts.Progress(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "progress", p)
}

func (s *Server) handleArchiveSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "sessionID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	session, err := s.svc.Workouts.Archive(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "session", session)
}

package server

import (
	"net/http"

	"github.com/fittrack/fittrack/internal/plans"
)

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	archived, err := queryBool(r, "archived")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	list, err := s.svc.Plans.List(r.Context(), userID(r), archived)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "workouts", list)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		ExerciseIDs []int64 `json:"exercise_ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	p, err := s.svc.Plans.Create(r.Context(), userID(r), req.Name, req.ExerciseIDs)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "workout", p)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathInt(r, "planID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	p, err := s.svc.Plans.Get(r.Context(), userID(r), planID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "workout", p)
}

func (s *Server) handleAddPlanExercise(w http.ResponseWriter, r *http.Request) {
	planID, err := pathInt(r, "planID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var p plans.Prescription
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	pe, err := s.svc.Plans.AddExercise(r.Context(), userID(r), planID, p)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "exercise", pe)
}

func (s *Server) handleUpdatePlanExercise(w http.ResponseWriter, r *http.Request) {
	planID, err := pathInt(r, "planID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	peID, err := pathInt(r, "peID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var p plans.Prescription
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	pe, err := s.svc.Plans.UpdateExercise(r.Context(), userID(r), planID, peID, p)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "exercise", pe)
}

func (s *Server) handleRemovePlanExercise(w http.ResponseWriter, r *http.Request) {
	planID, err := pathInt(r, "planID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	peID, err := pathInt(r, "peID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.svc.Plans.RemoveExercise(r.Context(), userID(r), planID, peID); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "", nil)
}

func (s *Server) handleReorderPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathInt(r, "planID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var req struct {
		Order []int64 `json:"order"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	exercises, err := s.svc.Plans.Reorder(r.Context(), userID(r), planID, req.Order)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "exercises", exercises)
}

func (s *Server) handleCopyPlanExercise(w http.ResponseWriter, r *http.Request) {
	planID, err := pathInt(r, "planID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var req struct {
		PlanExerciseID int64 `json:"plan_exercise_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	pe, err := s.svc.Plans.CopyExercise(r.Context(), userID(r), planID, req.PlanExerciseID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "exercise", pe)
}

func (s *Server) handleArchivePlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathInt(r, "planID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	p, err := s.svc.Plans.Archive(r.Context(), userID(r), planID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "workout", p)
}

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fittrack/fittrack/internal/catalog"
	"github.com/fittrack/fittrack/internal/media"
	"github.com/fittrack/fittrack/internal/models"
)

const multipartMemory = 8 << 20

func (s *Server) handleSearchExercises(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	q := r.URL.Query()
	exercises, err := s.svc.Catalog.Search(r.Context(), models.ExerciseFilter{
		UserID:    userID(r),
		Query:     q.Get("q"),
		Category:  models.Category(q.Get("category")),
		Level:     q.Get("level"),
		Equipment: q.Get("equipment"),
	}, page)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"exercises": exercises,
		"page":      page,
	})
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	e, err := s.svc.Catalog.Get(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "exercise", e)
}

func (s *Server) handleExerciseProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	uid := userID(r)
	if _, err := s.svc.Catalog.Get(r.Context(), uid, id); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	logs, err := s.svc.Workouts.ExerciseProgress(r.Context(), uid, id, limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "logs", logs)
}

// handleCreateExercise accepts a multipart form with the exercise fields and
// optional "image" and "video" files.
func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 2*s.opts.MaxUploadBytes+maxJSONBody)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, s.log, media.ErrTooLarge)
			return
		}
		writeError(w, r, s.log, fmt.Errorf("%w: invalid multipart form: %v", models.ErrValidation, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := catalog.NewExercise{
		Name:           r.FormValue("name"),
		Category:       models.Category(r.FormValue("category")),
		Level:          r.FormValue("level"),
		Mechanic:       r.FormValue("mechanic"),
		Equipment:      r.FormValue("equipment"),
		PrimaryMuscles: splitList(r.FormValue("primary_muscles"), ","),
		Instructions:   splitList(r.FormValue("instructions"), "\n"),
	}

	for field, dst := range map[string]**catalog.Upload{"image": &in.Image, "video": &in.Video} {
		hdrs := r.MultipartForm.File[field]
		if len(hdrs) == 0 {
			continue
		}
		f, err := hdrs[0].Open()
		if err != nil {
			writeError(w, r, s.log, fmt.Errorf("%w: reading %s: %v", models.ErrValidation, field, err))
			return
		}
		defer f.Close()
		*dst = &catalog.Upload{FileName: hdrs[0].Filename, Body: f}
	}

	e, err := s.svc.Catalog.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "exercise", e)
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package catalog serves the exercise catalog and user-authored exercises.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/coocood/freecache"

	"github.com/fittrack/fittrack/internal/media"
	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage"
)

const (
	// PageSize is the number of exercises per search page.
	PageSize = 20

	cacheSize   = 8 * 1024 * 1024
	cacheExpire = 10 * 60 // seconds
)

type Service struct {
	store storage.Queries
	media *media.Store
	cache *freecache.Cache
	log   *slog.Logger
}

func NewService(store storage.Queries, mediaStore *media.Store, log *slog.Logger) *Service {
	return &Service{
		store: store,
		media: mediaStore,
		cache: freecache.NewCache(cacheSize),
		log:   log,
	}
}

func cacheKey(id int64) []byte {
	return fmt.Appendf(nil, "exercise::%d", id)
}

// Get returns an exercise visible to userID. Exercises are cached by id.
func (s *Service) Get(ctx context.Context, userID, id int64) (*models.Exercise, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.VisibleTo(userID) {
		return nil, fmt.Errorf("exercise %d: %w", id, models.ErrNotFound)
	}
	return e, nil
}

func (s *Service) load(ctx context.Context, id int64) (*models.Exercise, error) {
	key := cacheKey(id)
	if data, err := s.cache.Get(key); err == nil {
		e := &models.Exercise{}
		if err := json.Unmarshal(data, e); err == nil {
			return e, nil
		}
		s.log.Error("decoding cached exercise", "exercise_id", id, "error", err)
	}

	e, err := s.store.GetExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return e, nil
	}
	if err := s.cache.Set(key, data, cacheExpire); err != nil {
		s.log.Warn("caching exercise", "exercise_id", id, "error", err)
	}
	return e, nil
}

// Search lists exercises visible to the filter's user. Pages start at 1.
func (s *Service) Search(ctx context.Context, f models.ExerciseFilter, page int) ([]models.Exercise, error) {
	if f.Category != "" && !f.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrValidation, f.Category)
	}
	if page < 1 {
		page = 1
	}
	f.Query = strings.TrimSpace(f.Query)
	f.Limit = PageSize
	f.Offset = (page - 1) * PageSize
	return s.store.SearchExercises(ctx, f)
}

// Upload is an uploaded file attached to a new exercise.
type Upload struct {
	FileName string
	Body     io.Reader
}

// NewExercise describes a user-authored exercise.
type NewExercise struct {
	Name           string
	Category       models.Category
	Level          string
	Mechanic       string
	Equipment      string
	PrimaryMuscles []string
	Instructions   []string
	Image          *Upload
	Video          *Upload
}

// Create stores a private exercise owned by userID, writing its media first.
func (s *Service) Create(ctx context.Context, userID int64, in NewExercise) (*models.Exercise, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || len(in.Name) > 100 {
		return nil, fmt.Errorf("%w: exercise name must be 1 to 100 characters", models.ErrValidation)
	}
	if in.Category == "" {
		in.Category = models.CategoryStrength
	}
	if !in.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrValidation, in.Category)
	}
	if in.Level == "" {
		in.Level = "beginner"
	}

	e := &models.Exercise{
		Name:           in.Name,
		Category:       in.Category,
		Level:          in.Level,
		Mechanic:       in.Mechanic,
		Equipment:      in.Equipment,
		PrimaryMuscles: in.PrimaryMuscles,
		Instructions:   in.Instructions,
		OwnerID:        &userID,
	}
	var saved []string
	cleanup := func() {
		for _, rel := range saved {
			if err := s.media.Remove(rel); err != nil {
				s.log.Warn("removing orphaned media", "path", rel, "error", err)
			}
		}
	}
	if in.Image != nil {
		rel, err := s.media.Save(media.KindImage, userID, in.Name, in.Image.FileName, in.Image.Body)
		if err != nil {
			return nil, err
		}
		saved = append(saved, rel)
		e.Images = []string{rel}
	}
	if in.Video != nil {
		rel, err := s.media.Save(media.KindVideo, userID, in.Name, in.Video.FileName, in.Video.Body)
		if err != nil {
			cleanup()
			return nil, err
		}
		saved = append(saved, rel)
		e.Video = rel
	}

	if err := s.store.InsertExercise(ctx, e); err != nil {
		cleanup()
		return nil, err
	}
	s.log.Info("custom exercise created", "exercise_id", e.ID, "user_id", userID, "category", e.Category)
	return e, nil
}

package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fittrack/fittrack/internal/media"
	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/storage/memstore"
)

// countingStore counts exercise reads that reach the store and can fail
// inserts.
type countingStore struct {
	*memstore.Store
	gets       int
	failInsert error
}

func (c *countingStore) InsertExercise(ctx context.Context, e *models.Exercise) error {
	if c.failInsert != nil {
		return c.failInsert
	}
	return c.Store.InsertExercise(ctx, e)
}

func (c *countingStore) GetExercise(ctx context.Context, id int64) (*models.Exercise, error) {
	c.gets++
	return c.Store.GetExercise(ctx, id)
}

func newService(t *testing.T) (*Service, *countingStore, string) {
	t.Helper()
	store := &countingStore{Store: memstore.New()}
	require.NoError(t, store.SeedCatalog(context.Background()))
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, media.NewStore(dir, 1024), log), store, dir
}

// TestGetIsCached verifies that repeated reads are served from the cache.
func TestGetIsCached(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(t)

	results, err := svc.Search(ctx, models.ExerciseFilter{Query: "squat"}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	id := results[0].ID

	first, err := svc.Get(ctx, 1, id)
	require.NoError(t, err)
	second, err := svc.Get(ctx, 2, id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.gets)
}

// TestSearchFilters verifies category filtering, validation and paging.
func TestSearchFilters(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	cardio, err := svc.Search(ctx, models.ExerciseFilter{Category: models.CategoryCardio}, 1)
	require.NoError(t, err)
	assert.Len(t, cardio, 3)
	for _, e := range cardio {
		assert.True(t, e.IsCardio())
	}

	_, err = svc.Search(ctx, models.ExerciseFilter{Category: "juggling"}, 1)
	assert.ErrorIs(t, err, models.ErrValidation)

	none, err := svc.Search(ctx, models.ExerciseFilter{}, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// TestCreatePrivateExercise verifies that a created exercise and its media
// are visible to its owner only.
func TestCreatePrivateExercise(t *testing.T) {
	ctx := context.Background()
	svc, _, dir := newService(t)
	name := gofakeit.Regex("[A-Z][a-z]{5} Curl")

	e, err := svc.Create(ctx, 7, NewExercise{
		Name:     name,
		Category: models.CategoryStrength,
		Image:    &Upload{FileName: "front.jpg", Body: strings.NewReader("jpeg")},
		Video:    &Upload{FileName: "demo.mp4", Body: strings.NewReader("mp4")},
	})
	require.NoError(t, err)
	require.NotNil(t, e.OwnerID)
	assert.Equal(t, int64(7), *e.OwnerID)
	assert.False(t, e.IsPublic)
	require.Len(t, e.Images, 1)
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(e.Images[0])))
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(e.Video)))

	_, err = svc.Get(ctx, 7, e.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, 8, e.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	mine, err := svc.Search(ctx, models.ExerciseFilter{UserID: 7, Query: "curl"}, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := svc.Search(ctx, models.ExerciseFilter{UserID: 8, Query: "curl"}, 1)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

// TestCreateRejectsBadUpload verifies that a disallowed upload writes nothing.
func TestCreateRejectsBadUpload(t *testing.T) {
	ctx := context.Background()
	svc, _, dir := newService(t)

	_, err := svc.Create(ctx, 7, NewExercise{
		Name:  "Odd",
		Image: &Upload{FileName: "payload.exe", Body: strings.NewReader("x")},
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = svc.Create(ctx, 7, NewExercise{Name: "Odd", Category: "juggling"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

// TestCreateRemovesMediaOnFailure verifies that files written for an exercise
// that was not stored are deleted again.
func TestCreateRemovesMediaOnFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, dir := newService(t)
	exerciseDir := filepath.Join(dir, "images", "7", "Cable_Fly")

	_, err := svc.Create(ctx, 7, NewExercise{
		Name:  "Cable Fly",
		Image: &Upload{FileName: "front.png", Body: strings.NewReader("png")},
		Video: &Upload{FileName: "demo.png", Body: strings.NewReader("not a video")},
	})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.NoFileExists(t, filepath.Join(exerciseDir, "front.png"))

	store.failInsert = errors.New("database down")
	_, err = svc.Create(ctx, 7, NewExercise{
		Name:  "Cable Fly",
		Image: &Upload{FileName: "front.png", Body: strings.NewReader("png")},
	})
	assert.ErrorIs(t, err, store.failInsert)
	assert.NoFileExists(t, filepath.Join(exerciseDir, "front.png"))
}

// TestCreateKeepsMediaPerOwner verifies that two users uploading the same
// file name for same-named exercises keep separate files.
func TestCreateKeepsMediaPerOwner(t *testing.T) {
	ctx := context.Background()
	svc, _, dir := newService(t)

	a, err := svc.Create(ctx, 7, NewExercise{Name: "Squat", Image: &Upload{FileName: "photo.jpg", Body: strings.NewReader("userA")}})
	require.NoError(t, err)
	b, err := svc.Create(ctx, 8, NewExercise{Name: "Squat", Image: &Upload{FileName: "photo.jpg", Body: strings.NewReader("userB")}})
	require.NoError(t, err)
	assert.NotEqual(t, a.Images[0], b.Images[0])

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(a.Images[0])))
	require.NoError(t, err)
	assert.Equal(t, "userA", string(data))
}

// Package media stores images and videos uploaded for user-authored exercises.
package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/fittrack/fittrack/internal/models"
)

// Kind selects the media subdirectory.
type Kind string

const (
	KindImage Kind = "images"
	KindVideo Kind = "videos"
)

var allowedExtensions = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".mp4":  KindVideo,
	".webm": KindVideo,
}

var kinds = map[Kind]struct{}{KindImage: {}, KindVideo: {}}

// ErrTooLarge is returned when an upload exceeds the configured size.
var ErrTooLarge = fmt.Errorf("%w: file too large", models.ErrValidation)

// Store writes uploads below a root directory.
type Store struct {
	root     string
	maxBytes int64
}

func NewStore(root string, maxBytes int64) *Store {
	return &Store{root: root, maxBytes: maxBytes}
}

// Root is the directory files are written to and served from.
func (s *Store) Root() string { return s.root }

// maxNameAttempts bounds the numbered variants tried when a file name is taken.
const maxNameAttempts = 100

// Save writes r to <root>/<kind>/<owner>/<exercise>/<file> and returns the
// path relative to root, using forward slashes. The kind must match the
// file's extension. An existing file is never replaced: a taken name gets a
// numbered suffix instead.
func (s *Store) Save(kind Kind, ownerID int64, exerciseName, fileName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	got, ok := allowedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: file type %q is not allowed", models.ErrValidation, ext)
	}
	if got != kind {
		return "", fmt.Errorf("%w: %s is not a valid %s file", models.ErrValidation, ext, strings.TrimSuffix(string(kind), "s"))
	}

	dirName := SanitizeName(exerciseName)
	base := SanitizeName(fileName)
	if dirName == "" || base == "" {
		return "", fmt.Errorf("%w: exercise and file names must contain letters or digits", models.ErrValidation)
	}

	relDir := path.Join(string(kind), strconv.FormatInt(ownerID, 10), dirName)
	if err := os.MkdirAll(filepath.Join(s.root, filepath.FromSlash(relDir)), 0o755); err != nil {
		return "", fmt.Errorf("creating media directory: %w", err)
	}

	rel, f, err := s.create(relDir, base)
	if err != nil {
		return "", err
	}
	dst := f.Name()
	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(dst)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("writing media file: %w", err)
	}
	return rel, nil
}

// create opens a new file named base in relDir, or base-2, base-3 and so on
// when the name is taken.
func (s *Store) create(relDir, base string) (string, *os.File, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; i <= maxNameAttempts; i++ {
		name := base
		if i > 1 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		rel := path.Join(relDir, name)
		f, err := os.OpenFile(filepath.Join(s.root, filepath.FromSlash(rel)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("creating media file: %w", err)
		}
		return rel, f, nil
	}
	return "", nil, fmt.Errorf("%w: too many files named %q", models.ErrConflict, base)
}

// Remove deletes a file previously returned by Save. A missing file is not
// an error.
func (s *Store) Remove(rel string) error {
	clean := path.Clean(rel)
	if clean == "." || path.IsAbs(clean) || strings.HasPrefix(clean, "../") || clean == ".." {
		return fmt.Errorf("%w: invalid media path %q", models.ErrValidation, rel)
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing media file: %w", err)
	}
	return nil
}

// Owner reports the user a relative media path belongs to.
func Owner(rel string) (int64, bool) {
	parts := strings.SplitN(strings.TrimPrefix(path.Clean("/"+rel), "/"), "/", 3)
	if len(parts) < 3 {
		return 0, false
	}
	if _, ok := kinds[Kind(parts[0])]; !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// SanitizeName reduces a name to a safe single path element: ASCII letters,
// digits, dots, dashes and underscores, with whitespace turned into
// underscores and leading dots removed.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), "._")
	if strings.Trim(out, ".-_") == "" {
		return ""
	}
	return out
}

// Package timerange parses the start/end windows accepted by the HTTP API and
// the MCP tools.
package timerange

import (
	"fmt"
	"time"

	"github.com/fittrack/fittrack/internal/models"
)

// MaxSpan is the longest window a caller may request.
const MaxSpan = 366 * 24 * time.Hour

const dateLayout = "2006-01-02"

// Parse reads start and end as RFC 3339 or YYYY-MM-DD in loc. A date-only end
// covers that whole day. Empty values fall back to defStart and defEnd.
func Parse(startStr, endStr string, loc *time.Location, defStart, defEnd time.Time) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	start, end = defStart, defEnd

	if startStr != "" {
		start, _, err = ParseFlex(startStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid start: %v", models.ErrValidation, err)
		}
	}
	if endStr != "" {
		var dateOnly bool
		end, dateOnly, err = ParseFlex(endStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid end: %v", models.ErrValidation, err)
		}
		if dateOnly {
			end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end is before start", models.ErrValidation)
	}
	if end.Sub(start) > MaxSpan {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: range is longer than %d days", models.ErrValidation, int(MaxSpan.Hours()/24))
	}
	return start, end, nil
}

// ParseFlex parses an RFC 3339 timestamp or a YYYY-MM-DD date at midnight in
// loc, reporting which form it was.
func ParseFlex(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

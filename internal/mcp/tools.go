package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/fittrack/fittrack/internal/timerange"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end, defaulting to back days before and
// ahead days after now. Dates are read in loc and a date-only end covers the
// whole day.
func defaultTimeRange(startStr, endStr string, loc *time.Location, now time.Time, back, ahead int) (time.Time, time.Time, error) {
	return timerange.Parse(startStr, endStr, loc, now.AddDate(0, 0, -back), now.AddDate(0, 0, ahead))
}

var errNoUser = errors.New("no authenticated user")

func userID(ctx context.Context) (int64, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return 0, errNoUser
	}
	return id, nil
}

// jsonResult wraps v, or reports a failed query as a tool error.
func (h *handlers) jsonResult(tool string, v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrForbidden) || errors.Is(err, models.ErrValidation) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		h.log.Error("mcp "+tool, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// --- Tool definitions ---

var toolGetWorkoutSessions = mcp.NewTool("get_workout_sessions",
	mcp.WithDescription("List completed workout sessions started in a date range, newest first. Each session has total sets, reps, lifted volume (kg) and duration in minutes. Source is 'tracked' for sessions logged set by set and 'calendar' for sessions checked off on the calendar."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolGetSessionDetail = mcp.NewTool("get_session_detail",
	mcp.WithDescription("Get one workout session with its completed sets grouped by exercise, including per-exercise total reps, volume and max weight."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID as returned by get_workout_sessions")),
)

var toolGetTrainingStats = mcp.NewTool("get_training_stats",
	mcp.WithDescription("Training statistics: current streak in days, workouts this week (Monday start) and this month, weekly target, total completed sessions and the last session."),
)

var toolGetWeightHistory = mcp.NewTool("get_weight_history",
	mcp.WithDescription("Body weight measurements, newest first, with summary statistics (current, start, change, average, min, max, 30-day average)."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of measurements. Defaults to 30.")),
)

var toolGetCalendarEvents = mcp.NewTool("get_calendar_events",
	mcp.WithDescription("Calendar events in a date range, with recurring series expanded into occurrences. Types: workout, cardio, rest, nutrition, other."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to 28 days from now.")),
)

// --- Tool handlers ---

func (h *handlers) getWorkoutSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := userID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), h.svc.Location, time.Now(), 30, 0)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sessions, err := h.svc.Workouts.Between(ctx, uid, start, end)
	return h.jsonResult("get_workout_sessions", sessions, err)
}

func (h *handlers) getSessionDetail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := userID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError("session_id must be a UUID"), nil
	}

	detail, err := h.svc.Workouts.Detail(ctx, uid, id)
	return h.jsonResult("get_session_detail", detail, err)
}

func (h *handlers) getTrainingStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := userID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := h.svc.Stats.Dashboard(ctx, uid)
	return h.jsonResult("get_training_stats", d, err)
}

func (h *handlers) getWeightHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := userID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	logs, err := h.svc.Weight.Recent(ctx, uid, req.GetInt("limit", 30))
	if err != nil {
		return h.jsonResult("get_weight_history", nil, err)
	}
	st, err := h.svc.Weight.Statistics(ctx, uid)
	return h.jsonResult("get_weight_history", map[string]any{
		"measurements": logs,
		"statistics":   st,
	}, err)
}

func (h *handlers) getCalendarEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := userID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), h.svc.Location, time.Now(), 7, 28)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	events, err := h.svc.Calendar.List(ctx, uid, start, end)
	return h.jsonResult("get_calendar_events", events, err)
}

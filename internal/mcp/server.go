package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fittrack/fittrack/internal/calendar"
	"github.com/fittrack/fittrack/internal/stats"
	"github.com/fittrack/fittrack/internal/weight"
	"github.com/fittrack/fittrack/internal/workout"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Services are the read paths exposed as tools. Location is the zone
// date-only arguments are read in; nil means UTC.
type Services struct {
	Workouts *workout.Service
	Stats    *stats.Service
	Weight   *weight.Service
	Calendar *calendar.Service
	Location *time.Location
}

// New creates an MCP server with all tools and resources registered.
func New(svc Services, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FitTrack", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("FitTrack training log. Query completed workout sessions, per-exercise sets, training statistics, body weight and calendar events. All data is scoped to the authenticated user and read-only."),
	)

	h := &handlers{svc: svc, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetWorkoutSessions, Handler: h.getWorkoutSessions},
		server.ServerTool{Tool: toolGetSessionDetail, Handler: h.getSessionDetail},
		server.ServerTool{Tool: toolGetTrainingStats, Handler: h.getTrainingStats},
		server.ServerTool{Tool: toolGetWeightHistory, Handler: h.getWeightHistory},
		server.ServerTool{Tool: toolGetCalendarEvents, Handler: h.getCalendarEvents},
	)

	s.AddResources(
		server.ServerResource{Resource: resDashboard, Handler: h.dashboard},
	)

	return s
}

// Handler serves s over streamable HTTP. userID reads the caller from the
// request, as set by the identity middleware in front of it.
func Handler(s *server.MCPServer, userID func(*http.Request) (int64, bool)) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithStateLess(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if id, ok := userID(r); ok {
				return WithUserID(ctx, id)
			}
			return ctx
		}),
	)
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	svc Services
	log *slog.Logger
}

// --- Resource definitions ---

var resDashboard = mcp.NewResource(
	"fittrack://dashboard",
	"Dashboard",
	mcp.WithResourceDescription("Current streak, workouts this week and month, the active session and weight statistics"),
	mcp.WithMIMEType("application/json"),
)

package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fittrack/fittrack/internal/calendar"
	"github.com/fittrack/fittrack/internal/catalog"
	"github.com/fittrack/fittrack/internal/config"
	"github.com/fittrack/fittrack/internal/media"
	"github.com/fittrack/fittrack/internal/metrics"
	"github.com/fittrack/fittrack/internal/plans"
	"github.com/fittrack/fittrack/internal/stats"
	"github.com/fittrack/fittrack/internal/users"
	"github.com/fittrack/fittrack/internal/weight"
	"github.com/fittrack/fittrack/internal/workout"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services are the domain services behind the HTTP handlers.
type Services struct {
	Users    *users.Service
	Catalog  *catalog.Service
	Plans    *plans.Service
	Workouts *workout.Service
	Calendar *calendar.Service
	Stats    *stats.Service
	Weight   *weight.Service
}

// Options configure a Server.
type Options struct {
	Auth            config.AuthConfig
	Limiter         RequestRateLimiter
	WritesPerMinute int
	MaxUploadBytes  int64
	MediaRoot       string
	Location        *time.Location
	Metrics         *metrics.Manager
	Gatherer        prometheus.Gatherer
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc     Services
	opts    Options
	whois   WhoIsClient
	log     *slog.Logger
	router  chi.Router
	private chi.Router
}

// New creates a new Server with all routes configured.
func New(svc Services, opts Options, log *slog.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		svc:    svc,
		opts:   opts,
		log:    log,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale sets the client used to resolve tailnet identities.
func (s *Server) SetTailscale(lc WhoIsClient) {
	s.whois = lc
}

// handleMedia serves uploaded exercise files to the user who uploaded them.
// Directory listings are not exposed.
func (s *Server) handleMedia(root string) http.HandlerFunc {
	files := http.StripPrefix("/media/", http.FileServer(http.Dir(root)))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		uid, _ := UserIDFromContext(r.Context())
		if owner, ok := media.Owner(strings.TrimPrefix(r.URL.Path, "/media/")); !ok || owner != uid {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}
}

// MountMCP serves h at /mcp behind the identity middleware.
func (s *Server) MountMCP(h http.Handler) {
	s.private.Handle("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	// Behind a reverse proxy the client address comes from forwarding headers.
	// WhoIs needs the real peer address, so it is left alone otherwise.
	if s.opts.Auth.Mode == config.AuthHeader {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(RequestLogging(s.log))
	s.router.Use(RequestMetrics(s.opts.Metrics))
	s.router.Use(PanicRecovery(s.opts.Metrics, s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	s.private = s.router.With(
		Identity(s.opts.Auth, func() WhoIsClient { return s.whois }, s.svc.Users, s.log),
		RateLimit(s.opts.Limiter, s.opts.WritesPerMinute, s.opts.Metrics, s.log),
	)

	if s.opts.MediaRoot != "" {
		s.private.Get("/media/*", s.handleMedia(s.opts.MediaRoot))
	}

	s.private.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)
		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handleUpdateProfile)

		r.Get("/exercises", s.handleSearchExercises)
		r.Post("/exercises", s.handleCreateExercise)
		r.Get("/exercises/{id}", s.handleGetExercise)
		r.Get("/exercises/{id}/progress", s.handleExerciseProgress)

		r.Get("/workouts", s.handleListPlans)
		r.Post("/workouts", s.handleCreatePlan)
		r.Get("/workouts/edit_workout/{planID}", s.handleGetPlan)
		r.Post("/workouts/{planID}/exercises", s.handleAddPlanExercise)
		r.Put("/workouts/{planID}/exercises/{peID}", s.handleUpdatePlanExercise)
		r.Delete("/workouts/{planID}/exercises/{peID}", s.handleRemovePlanExercise)
		r.Post("/workouts/{planID}/reorder", s.handleReorderPlan)
		r.Post("/workouts/{planID}/copy_exercise", s.handleCopyPlanExercise)
		r.Post("/workouts/{planID}/archive", s.handleArchivePlan)

		r.Post("/sessions/start_workout/{planID}", s.handleStartWorkout)
		r.Get("/sessions/active", s.handleActiveSession)
		r.Post("/sessions/abandon", s.handleAbandonSession)
		r.Post("/sessions/save_set", s.handleSaveSet)
		r.Post("/sessions/save_workout/{planID}", s.handleSaveWorkout)
		r.Post("/sessions/complete_workout/{planID}", s.handleCompleteWorkout)
		r.Get("/sessions/history", s.handleSessionHistory)
		r.Get("/sessions/{sessionID}", s.handleSessionDetail)
		r.Get("/sessions/{sessionID}/progress", s.handleSessionProgress)
		r.Post("/sessions/{sessionID}/archive", s.handleArchiveSession)

		r.Get("/calendar/events", s.handleListEvents)
		r.Post("/calendar/event", s.handleCreateEvent)
		r.Put("/calendar/event/{id}", s.handleUpdateEvent)
		r.Delete("/calendar/event/{id}", s.handleDeleteEvent)
		r.Post("/calendar/event/{id}/complete", s.handleCompleteEvent)
		r.Post("/calendar/sync", s.handleSyncCalendar)

		r.Get("/stats/dashboard", s.handleDashboard)

		r.Get("/weight", s.handleWeightHistory)
		r.Post("/weight", s.handleLogWeight)
		r.Get("/weight/stats", s.handleWeightStats)
		r.Get("/weight/chart", s.handleWeightChart)
	})
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fittrack/fittrack/internal/config"
	"github.com/fittrack/fittrack/internal/metrics"
	"github.com/fittrack/fittrack/internal/models"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis_rate/v9"
	"tailscale.com/client/tailscale/apitype"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext returns the user resolved by the identity middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

func withUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// WhoIsClient looks up the tailnet identity behind a remote address.
// *local.Client from a tsnet server satisfies it.
type WhoIsClient interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// PrincipalResolver maps an authenticated principal to a local user.
type PrincipalResolver interface {
	Resolve(ctx context.Context, p models.Principal) (*models.User, error)
}

// DevPrincipal is the fixed identity used in dev mode.
var DevPrincipal = models.Principal{
	Subject:     "dev",
	Email:       "dev@localhost",
	DisplayName: "Developer",
}

// Identity returns middleware that authenticates the caller with the
// configured mode and stores the resolved user id in the request context.
func Identity(auth config.AuthConfig, whois func() WhoIsClient, users PrincipalResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := principal(r, auth, whois)
			if err != nil {
				log.Debug("identity rejected", "mode", auth.Mode, "remote", r.RemoteAddr, "error", err)
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthenticated"))
				return
			}
			u, err := users.Resolve(r.Context(), p)
			if err != nil {
				writeError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), u.ID)))
		})
	}
}

func principal(r *http.Request, auth config.AuthConfig, whois func() WhoIsClient) (models.Principal, error) {
	switch auth.Mode {
	case config.AuthDev:
		return DevPrincipal, nil
	case config.AuthHeader:
		p := models.Principal{
			Subject:     r.Header.Get(auth.UserHeader),
			Email:       r.Header.Get(auth.EmailHeader),
			DisplayName: r.Header.Get(auth.NameHeader),
		}
		if p.Subject == "" {
			return p, fmt.Errorf("missing %s header", auth.UserHeader)
		}
		return p, nil
	case config.AuthTailscale:
		lc := whois()
		if lc == nil {
			return models.Principal{}, fmt.Errorf("tailscale client not configured")
		}
		who, err := lc.WhoIs(r.Context(), r.RemoteAddr)
		if err != nil {
			return models.Principal{}, fmt.Errorf("whois %s: %w", r.RemoteAddr, err)
		}
		if who.UserProfile == nil || who.UserProfile.LoginName == "" {
			return models.Principal{}, fmt.Errorf("whois %s: no user profile", r.RemoteAddr)
		}
		return models.Principal{
			Subject:     who.UserProfile.LoginName,
			Email:       who.UserProfile.LoginName,
			DisplayName: who.UserProfile.DisplayName,
		}, nil
	default:
		return models.Principal{}, fmt.Errorf("unknown auth mode %q", auth.Mode)
	}
}

// RequestLogging returns middleware that logs each request.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// PanicRecovery turns a handler panic into a 500 response.
func PanicRecovery(m *metrics.Manager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					m.CounterHandleRequestPanic.Inc()
					log.Error("handler panic",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", fmt.Sprint(rec),
						"request_id", middleware.GetReqID(r.Context()),
					)
					writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestMetrics records request counts, in-flight requests and durations.
func RequestMetrics(m *metrics.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.GaugeRequests.Inc()
			defer m.GaugeRequests.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			m.HistRequestDuration.Observe(time.Since(start).Seconds())
			m.CounterRequests.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
		})
	}
}

// RequestRateLimiter is satisfied by *redis_rate.Limiter.
type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimit limits mutating requests per user. Reads pass through. It must
// run after Identity. A limiter failure lets the request through.
func RateLimit(limiter RequestRateLimiter, perMinute int, m *metrics.Manager, log *slog.Logger) func(http.Handler) http.Handler {
	limit := redis_rate.PerMinute(perMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || r.Method == http.MethodGet || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Allow(r.Context(), "rate:writes:"+strconv.FormatInt(userID, 10), limit)
			if err != nil {
				log.Error("rate limiter", "user_id", userID, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if res.Allowed == 0 {
				m.CounterRateLimited.Inc()
				seconds := int(res.RetryAfter / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeJSON(w, http.StatusTooManyRequests, errorBody("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS adds permissive CORS headers for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

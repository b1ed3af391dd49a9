package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fittrack/fittrack/internal/config"
	"github.com/fittrack/fittrack/internal/metrics"
	"github.com/fittrack/fittrack/internal/models"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/tailcfg"
)

type fakeWhoIs struct {
	profiles map[string]*tailcfg.UserProfile
}

func (f *fakeWhoIs) WhoIs(_ context.Context, remoteAddr string) (*apitype.WhoIsResponse, error) {
	p, ok := f.profiles[remoteAddr]
	if !ok {
		return nil, errors.New("no peer")
	}
	return &apitype.WhoIsResponse{UserProfile: p}, nil
}

type fakeResolver struct {
	seen []models.Principal
}

func (f *fakeResolver) Resolve(_ context.Context, p models.Principal) (*models.User, error) {
	f.seen = append(f.seen, p)
	return &models.User{ID: int64(len(f.seen)), Subject: p.Subject}, nil
}

// echoUserID writes the user id placed in the context by Identity.
var echoUserID = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user_id": id, "ok": ok})
})

// TestIdentityHeaderMode verifies users are resolved from proxy headers.
func TestIdentityHeaderMode(t *testing.T) {
	auth := config.AuthConfig{Mode: config.AuthHeader, UserHeader: "X-User", EmailHeader: "X-Email", NameHeader: "X-Name"}
	resolver := &fakeResolver{}
	h := Identity(auth, func() WhoIsClient { return nil }, resolver, discardLogger())(echoUserID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, resolver.seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User", "sub-123")
	req.Header.Set("X-Email", "ann@example.com")
	req.Header.Set("X-Name", "Ann")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":1,"ok":true}`, w.Body.String())
	require.Len(t, resolver.seen, 1)
	assert.Equal(t, models.Principal{Subject: "sub-123", Email: "ann@example.com", DisplayName: "Ann"}, resolver.seen[0])
}

// TestIdentityTailscaleMode verifies users are resolved through WhoIs.
func TestIdentityTailscaleMode(t *testing.T) {
	auth := config.AuthConfig{Mode: config.AuthTailscale}
	resolver := &fakeResolver{}
	whois := &fakeWhoIs{profiles: map[string]*tailcfg.UserProfile{
		"100.64.0.7:41000": {LoginName: "ann@github", DisplayName: "Ann"},
	}}

	h := Identity(auth, func() WhoIsClient { return nil }, resolver, discardLogger())(echoUserID)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "100.64.0.7:41000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "no client configured")

	h = Identity(auth, func() WhoIsClient { return whois }, resolver, discardLogger())(echoUserID)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resolver.seen, 1)
	assert.Equal(t, "ann@github", resolver.seen[0].Subject)
	assert.Equal(t, "Ann", resolver.seen[0].DisplayName)

	req.RemoteAddr = "100.64.0.9:41000"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type testRequestRateLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (l *testRequestRateLimiter) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, l.err
	}
	if l.allowed {
		return &redis_rate.Result{Limit: limit, Allowed: 1, Remaining: limit.Burst - 1}, nil
	}
	return &redis_rate.Result{Limit: limit, Allowed: 0, RetryAfter: 1500 * time.Millisecond}, nil
}

func withUser(r *http.Request, id int64) *http.Request {
	return r.WithContext(withUserID(r.Context(), id))
}

// TestRateLimit verifies writes are limited and reads are not.
func TestRateLimit(t *testing.T) {
	m := metrics.NewTestManager()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	limiter := &testRequestRateLimiter{}
	h := RateLimit(limiter, 10, m, discardLogger())(ok)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/", nil), 7))
	assert.Equal(t, http.StatusNoContent, w.Code, "reads are not limited")
	assert.Empty(t, limiter.keys)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodPost, "/", nil), 7))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, []string{"rate:writes:7"}, limiter.keys)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterRateLimited))

	limiter.allowed = true
	w = httptest.NewRecorder()
	h.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodPost, "/", nil), 7))
	assert.Equal(t, http.StatusNoContent, w.Code)

	limiter.err = errors.New("redis down")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodPut, "/", nil), 7))
	assert.Equal(t, http.StatusNoContent, w.Code, "limiter failure lets requests through")

	h = RateLimit(nil, 10, m, discardLogger())(ok)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodPost, "/", nil), 7))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

// TestPanicRecovery verifies a panicking handler answers 500.
func TestPanicRecovery(t *testing.T) {
	m := metrics.NewTestManager()
	h := PanicRecovery(m, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"internal error"}`, w.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterHandleRequestPanic))
}

// TestRequestMetrics verifies requests are counted by method and status and
// the in-flight gauge drops back to zero.
func TestRequestMetrics(t *testing.T) {
	m := metrics.NewTestManager()
	h := RequestMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterRequests.WithLabelValues(http.MethodPost, "418")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GaugeRequests))
}

// TestWriteErrorHidesInternalErrors verifies internal errors are not exposed.
func TestWriteErrorHidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), discardLogger(), errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"internal error"}`, w.Body.String())
}

// TestParseTimeRange verifies query ranges and their defaults.
func TestParseTimeRange(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ams, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/?start=2025-03-01&end=2025-03-31", nil)
	start, end, err := parseTimeRange(req, ams, now)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, ams)), start)
	assert.True(t, end.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, ams).Add(-time.Nanosecond)), end)

	req = httptest.NewRequest(http.MethodGet, "/?start=2025-03-01T08:00:00Z", nil)
	start, end, err = parseTimeRange(req, time.UTC, now)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)), start)
	assert.True(t, end.Equal(now.AddDate(0, 0, 28)), end)

	req = httptest.NewRequest(http.MethodGet, "/?start=yesterday", nil)
	_, _, err = parseTimeRange(req, time.UTC, now)
	assert.ErrorIs(t, err, models.ErrValidation)

	req = httptest.NewRequest(http.MethodGet, "/?start=2025-03-10&end=2025-03-01", nil)
	_, _, err = parseTimeRange(req, time.UTC, now)
	assert.ErrorIs(t, err, models.ErrValidation)

	req = httptest.NewRequest(http.MethodGet, "/?start=2200-01-01&end=2260-01-01", nil)
	_, _, err = parseTimeRange(req, time.UTC, now)
	assert.ErrorIs(t, err, models.ErrValidation, "window length is bounded")
}

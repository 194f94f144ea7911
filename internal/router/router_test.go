package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	accountrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/ratelimit"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/reset"
	resetrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/reset/repo"
)

func newAuthHandler(t *testing.T) *auth.Handler {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := reset.NewStore(resetrepo.NewMemoryRepo(), clock)
	issuer, err := reset.NewIssuer(store, notify.NewLogMailer(nil), reset.Config{TTL: 15 * time.Minute, BaseURL: "http://localhost:3000"}, nil)
	require.NoError(t, err)
	svc, err := auth.NewService(accountrepo.NewMemoryRepo(), store, issuer, auth.BcryptHasher{Cost: bcrypt.MinCost}, auth.WithClock(clock))
	require.NoError(t, err)
	return auth.NewHandler(svc, nil)
}

func TestRegisterRoutes_Health(t *testing.T) {
	h := RegisterRoutes(Deps{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 27)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestIDMiddleware_PropagatesHeader(t *testing.T) {
	var seen string
	h := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestRegisterRoutes_AuthFlowAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := RegisterRoutes(Deps{Auth: newAuthHandler(t), Registry: reg})

	post := func(path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		return rec
	}

	assert.Equal(t, http.StatusCreated, post("/auth/register", `{"username":"alice","password":"pw"}`).Code)
	assert.Equal(t, http.StatusConflict, post("/auth/signup", `{"identifier":"alice","password":"pw"}`).Code)
	assert.Equal(t, http.StatusOK, post("/auth/login", `{"username":"alice","password":"pw"}`).Code)
	assert.Equal(t, http.StatusOK, post("/auth/forgot-password", `{"username":"alice"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post("/auth/reset-password", `{"token":"nope","newPassword":"x"}`).Code)

	m := newHTTPMetrics(reg, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("POST /auth/login", "POST", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("POST /auth/signup", "POST", "409")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "auth_http_requests_total")
}

func TestRegisterRoutes_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	limiter := ratelimit.NewLimiter(client, ratelimit.Config{Limit: 1, Window: time.Minute}, clockwork.NewFakeClock(), nil)

	h := RegisterRoutes(Deps{Auth: newAuthHandler(t), Limiter: limiter})
	send := func() int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"x","password":"y"}`))
		req.RemoteAddr = "192.0.2.1:4000"
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusUnauthorized, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	// health is not limited
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

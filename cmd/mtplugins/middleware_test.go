package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/config"
	"github.com/BaSui01/mtplugins/internal/ctxkeys"
	"github.com/BaSui01/mtplugins/internal/metrics"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(SecurityHeaders()(okHandler()), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'none'", w.Header().Get("Content-Security-Policy"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	serve(Chain(okHandler(), mark("a"), mark("b"), mark("c")), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ctxkeys.RequestID(r.Context())
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "client-id")
	w = serve(h, r)
	assert.Equal(t, "client-id", seen)
	assert.Equal(t, "client-id", w.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`, w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimiter(ctx, 0.001, 1, zap.NewNop())(okHandler())

	from := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		return serve(h, r)
	}
	assert.Equal(t, http.StatusOK, from("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1:1001").Code)
	assert.Equal(t, http.StatusOK, from("10.0.0.2:1000").Code, "limits are per client IP")
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	assert.Equal(t, "https://app.example.com", serve(h, r).Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	assert.Empty(t, serve(h, r).Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodOptions, "/api/v1/translate", nil)
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(h, r)
	assert.Less(t, w.Code, 300)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	assert.Empty(t, serve(CORS(nil)(okHandler()), r).Header().Get("Access-Control-Allow-Origin"))
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthenticate(t *testing.T) {
	cfg := config.AuthConfig{APIKeys: []string{"key-1", "key-2"}, JWTSecret: "s3cret", JWTIssuer: "mtplugins"}
	var subject string
	h := Authenticate(cfg, []string{pathHealth}, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = ctxkeys.Subject(r.Context())
	}))

	exp := time.Now().Add(time.Hour).Unix()
	tests := []struct {
		name    string
		path    string
		header  map[string]string
		status  int
		subject string
	}{
		{"skip path", pathHealth, nil, http.StatusOK, ""},
		{"no credentials", pathTranslate, nil, http.StatusUnauthorized, ""},
		{"api key", pathTranslate, map[string]string{"X-API-Key": "key-2"}, http.StatusOK, "api-key"},
		{"wrong api key", pathTranslate, map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, ""},
		{"jwt", pathTranslate, map[string]string{"Authorization": "Bearer " + signToken(t, "s3cret", jwt.MapClaims{"sub": "alice", "iss": "mtplugins", "exp": exp})}, http.StatusOK, "alice"},
		{"jwt without sub", pathTranslate, map[string]string{"Authorization": "Bearer " + signToken(t, "s3cret", jwt.MapClaims{"iss": "mtplugins", "exp": exp})}, http.StatusOK, "jwt"},
		{"jwt wrong secret", pathTranslate, map[string]string{"Authorization": "Bearer " + signToken(t, "other", jwt.MapClaims{"sub": "alice", "iss": "mtplugins", "exp": exp})}, http.StatusUnauthorized, ""},
		{"jwt wrong issuer", pathTranslate, map[string]string{"Authorization": "Bearer " + signToken(t, "s3cret", jwt.MapClaims{"sub": "alice", "iss": "else", "exp": exp})}, http.StatusUnauthorized, ""},
		{"jwt expired", pathTranslate, map[string]string{"Authorization": "Bearer " + signToken(t, "s3cret", jwt.MapClaims{"sub": "alice", "iss": "mtplugins", "exp": time.Now().Add(-time.Hour).Unix()})}, http.StatusUnauthorized, ""},
		{"jwt without exp", pathTranslate, map[string]string{"Authorization": "Bearer " + signToken(t, "s3cret", jwt.MapClaims{"sub": "alice", "iss": "mtplugins"})}, http.StatusUnauthorized, ""},
		{"basic auth", pathTranslate, map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = ""
			r := httptest.NewRequest(http.MethodPost, tt.path, nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			w := serve(h, r)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.subject, subject)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
			}
		})
	}
}

func TestAuthenticate_APIKeysOnly(t *testing.T) {
	h := Authenticate(config.AuthConfig{APIKeys: []string{"k"}}, nil, zap.NewNop())(okHandler())
	r := httptest.NewRequest(http.MethodGet, pathPlugins, nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, "whatever", jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()}))
	assert.Equal(t, http.StatusUnauthorized, serve(h, r).Code, "JWT is rejected when no secret is configured")
}

func TestNormalizePath(t *testing.T) {
	tests := [][2]string{
		{pathTranslate, pathTranslate},
		{pathTranslateStream, pathTranslateStream},
		{"/api/v1/plugins/42", "/api/v1/plugins/:id"},
		{"/x/0123456789abcdef/y", "/x/:id/y"},
		{"/x/3f2b8c1e-1c2d-4e5f-8a9b-0c1d2e3f4a5b", "/x/:id"},
		{"/api/v1/unknown", "/api/v1/unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt[1], normalizePath(tt[0]), tt[0])
	}
}

func TestMetricsMiddleware(t *testing.T) {
	ns := nextNamespace()
	h := MetricsMiddleware(metrics.NewCollector(ns, zap.NewNop()))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hello"))
	}))

	serve(h, httptest.NewRequest(http.MethodPost, pathTranslate, nil))
	serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/plugins/7", nil))

	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, ns+"_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := newStatusRecorder(w)

	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusInternalServerError)
	_, _ = rec.Write([]byte("abc"))
	rec.Flush()

	assert.Equal(t, http.StatusCreated, rec.status)
	assert.Equal(t, int64(3), rec.written)
	assert.True(t, w.Flushed)
	assert.Same(t, w, rec.Unwrap())
}

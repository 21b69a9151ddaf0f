package httpservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/plugin"
)

type recordingObserver struct {
	mu      sync.Mutex
	samples []string
}

func (o *recordingObserver) ObserveUpstream(host string, status int, stream bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = append(o.samples, fmt.Sprintf("%s %d %v", host, status, stream))
}

func newService(t *testing.T, cfg Config, opts ...Option) *Service {
	t.Helper()
	s, err := New(cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	return s
}

// =============================================================================
// Post
// =============================================================================

func TestPost_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		assert.Equal(t, "mtplugins", r.Header.Get("User-Agent"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qwen-mt-turbo", body["model"])

		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	s := newService(t, DefaultConfig(), WithObserver(obs))

	out, err := s.Post(context.Background(), srv.URL, map[string]any{"model": "qwen-mt-turbo"}, plugin.BearerOptions("sk"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"choices":[{"message":{"content":"ok"}}]}`, out)

	require.Len(t, obs.samples, 1)
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://")+" 200 false", obs.samples[0])
}

func TestPost_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		code   plugin.ErrorCode
		msg    string
	}{
		{http.StatusUnauthorized, `{"code":"InvalidApiKey","message":"Invalid API-key provided."}`, plugin.ErrUnauthorized, "Invalid API-key provided. (code: InvalidApiKey)"},
		{http.StatusBadRequest, `{"error":{"message":"Arrearage","type":"billing"}}`, plugin.ErrQuotaExceeded, "Arrearage (type: billing)"},
		{http.StatusTooManyRequests, `slow down`, plugin.ErrRateLimited, "slow down"},
		{http.StatusServiceUnavailable, ``, plugin.ErrUpstreamError, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newService(t, DefaultConfig()).Post(context.Background(), srv.URL, struct{}{}, nil)
			require.Error(t, err)

			var perr *plugin.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.code, perr.Code)
			assert.Equal(t, tt.status, perr.HTTPStatus)
			assert.Equal(t, tt.msg, perr.Message)
		})
	}
}

func TestPost_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newService(t, DefaultConfig()).Post(context.Background(), url, struct{}{}, nil)
	require.Error(t, err)
	assert.Equal(t, plugin.ErrUpstreamError, plugin.CodeOf(err))
	assert.True(t, plugin.IsRetryable(err))
}

func TestPost_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	_, err := newService(t, cfg).Post(context.Background(), srv.URL, struct{}{}, nil)
	require.Error(t, err)
	assert.Equal(t, plugin.ErrUpstreamTimeout, plugin.CodeOf(err))
}

func TestNew_InvalidProxy(t *testing.T) {
	_, err := New(Config{Proxy: "gopher://x"}, nil)
	assert.Error(t, err)
}

// =============================================================================
// StreamPost
// =============================================================================

func TestStreamPost_Lines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, l := range []string{"data: {\"a\":1}\r\n", "\n", "data: {\"a\":2}\n"} {
			_, _ = io.WriteString(w, l)
			flusher.Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]")
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	s := newService(t, DefaultConfig(), WithObserver(obs))

	var lines []string
	err := s.StreamPost(context.Background(), srv.URL, struct{}{}, func(l string) { lines = append(lines, l) }, plugin.BearerOptions("k"))
	require.NoError(t, err)
	assert.Equal(t, []string{`data: {"a":1}`, "", `data: {"a":2}`, "data: [DONE]"}, lines)
	require.Len(t, obs.samples, 1)
	assert.Contains(t, obs.samples[0], " 200 true")
}

func TestStreamPost_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"too many"}}`)
	}))
	defer srv.Close()

	called := false
	err := newService(t, DefaultConfig()).StreamPost(context.Background(), srv.URL, struct{}{}, func(string) { called = true }, nil)
	assert.Equal(t, plugin.ErrRateLimited, plugin.CodeOf(err))
	assert.False(t, called)
}

func TestStreamPost_CancelMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: first\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var lines []string
	err := newService(t, DefaultConfig()).StreamPost(ctx, srv.URL, struct{}{}, func(l string) {
		lines = append(lines, l)
		cancel()
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"data: first"}, lines)
}

func TestReadLines_LongLines(t *testing.T) {
	long := strings.Repeat("x", 10000)

	var got []string
	dropped, err := readLines(context.Background(), strings.NewReader(long+"\nshort"), 1<<20, func(l string) { got = append(got, l) })
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, []string{long, "short"}, got)

	got = nil
	dropped, err = readLines(context.Background(), strings.NewReader("a\n"+long+"\nb\n"+long), 100, func(l string) { got = append(got, l) })
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestStreamPost_OversizedLineIsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"a\":1}\n\n")
		_, _ = io.WriteString(w, "data: "+strings.Repeat("x", 2<<20)+"\n\n")
		_, _ = io.WriteString(w, "data: {\"a\":2}\n\ndata: [DONE]\n")
	}))
	defer srv.Close()

	s := newService(t, DefaultConfig())

	var lines []string
	err := s.StreamPost(context.Background(), srv.URL, struct{}{}, func(l string) {
		if l != "" {
			lines = append(lines, l)
		}
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{`data: {"a":1}`, `data: {"a":2}`, "data: [DONE]"}, lines)
}

// =============================================================================
// Rate limit
// =============================================================================

func TestRateLimit_WaitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "{}")
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.RateLimit = 0.001
	cfg.Burst = 1
	s := newService(t, cfg)

	_, err := s.Post(context.Background(), srv.URL, struct{}{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Post(ctx, srv.URL, struct{}{}, nil)
	require.Error(t, err)
}

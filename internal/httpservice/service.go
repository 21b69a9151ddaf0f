// Package httpservice implements plugin.HTTPService on top of resty with a
// hardened transport, an optional client-side rate limit and upstream status
// mapping to coded errors.
package httpservice

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/mtplugins/internal/tlsutil"
	"github.com/BaSui01/mtplugins/plugin"
)

// Config configures the service.
type Config struct {
	// Timeout bounds a non-streaming request. Streaming requests are bounded
	// only by their context.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" json:"timeout"`
	// Proxy is an optional outbound proxy URL.
	Proxy string `yaml:"proxy" env:"PROXY" json:"proxy"`
	// RateLimit is requests per second across all plugins; 0 disables it.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT" json:"rate_limit"`
	Burst     int     `yaml:"burst" env:"BURST" json:"burst"`
	UserAgent string  `yaml:"user_agent" env:"USER_AGENT" json:"user_agent"`
	// MaxLineBytes caps one streamed line.
	MaxLineBytes int `yaml:"max_line_bytes" env:"MAX_LINE_BYTES" json:"max_line_bytes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:      60 * time.Second,
		Burst:        5,
		UserAgent:    "mtplugins",
		MaxLineBytes: 1 << 20,
	}
}

// Observer receives one sample per upstream request.
type Observer interface {
	ObserveUpstream(host string, status int, stream bool, d time.Duration)
}

// Service implements plugin.HTTPService.
type Service struct {
	cfg      Config
	client   *resty.Client
	stream   *resty.Client
	limiter  *rate.Limiter
	observer Observer
	logger   *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithObserver reports request latency and status to o.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// New builds a Service.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = def.MaxLineBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	tr, err := tlsutil.NewTransport(tlsutil.TransportOptions{Proxy: cfg.Proxy})
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}

	s := &Service{
		cfg:    cfg,
		client: newClient(&http.Client{Timeout: cfg.Timeout, Transport: tr}, cfg.UserAgent),
		stream: newClient(&http.Client{Transport: tr}, cfg.UserAgent),
		logger: logger.With(zap.String("component", "httpservice")),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func newClient(hc *http.Client, userAgent string) *resty.Client {
	return resty.NewWithClient(hc).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", userAgent)
}

func (s *Service) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return plugin.NewError(plugin.ErrRateLimited, "client rate limit exceeded").WithCause(err)
	}
	return nil
}

func (s *Service) request(ctx context.Context, c *resty.Client, body any, opts *plugin.Options) *resty.Request {
	r := c.R().SetContext(ctx).SetBody(body)
	if opts != nil && len(opts.Headers) > 0 {
		r.SetHeaders(opts.Headers)
	}
	return r
}

func (s *Service) observe(rawURL string, status int, stream bool, start time.Time) {
	if s.observer == nil {
		return
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	s.observer.ObserveUpstream(host, status, stream, time.Since(start))
}

// transportError converts a failed round trip. Context errors are returned
// as-is so callers can match context.Canceled.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		e := plugin.NewError(plugin.ErrUpstreamTimeout, "upstream request timed out").WithCause(err)
		e.HTTPStatus = http.StatusGatewayTimeout
		e.Retryable = true
		return e
	}
	e := plugin.NewError(plugin.ErrUpstreamError, "upstream request failed").WithCause(err)
	e.HTTPStatus = http.StatusBadGateway
	e.Retryable = true
	return e
}

// Post implements plugin.HTTPService.
func (s *Service) Post(ctx context.Context, url string, body any, opts *plugin.Options) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	resp, err := s.request(ctx, s.client, body, opts).Post(url)
	if err != nil {
		s.observe(url, 0, false, start)
		return "", transportError(ctx, err)
	}
	s.observe(url, resp.StatusCode(), false, start)

	if resp.StatusCode() >= http.StatusBadRequest {
		msg := plugin.ErrorMessage(resp.Body())
		s.logger.Warn("upstream error",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode()),
			zap.String("message", msg))
		return "", plugin.MapHTTPError(resp.StatusCode(), msg, "")
	}
	return resp.String(), nil
}

// StreamPost implements plugin.HTTPService. Lines are delivered without their
// trailing newline, on the calling goroutine.
func (s *Service) StreamPost(ctx context.Context, url string, body any, onLine func(string), opts *plugin.Options) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	resp, err := s.request(ctx, s.stream, body, opts).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post(url)
	if err != nil {
		s.observe(url, 0, true, start)
		return transportError(ctx, err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() >= http.StatusBadRequest {
		s.observe(url, resp.StatusCode(), true, start)
		msg := plugin.ReadErrorMessage(io.LimitReader(raw, 64<<10))
		s.logger.Warn("upstream stream error",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode()),
			zap.String("message", msg))
		return plugin.MapHTTPError(resp.StatusCode(), msg, "")
	}

	dropped, err := readLines(ctx, raw, s.cfg.MaxLineBytes, onLine)
	if dropped > 0 {
		s.logger.Warn("dropped oversized stream lines",
			zap.String("url", url),
			zap.Int("count", dropped),
			zap.Int("max_line_bytes", s.cfg.MaxLineBytes))
	}
	s.observe(url, resp.StatusCode(), true, start)
	return err
}

// readLines feeds every line of r to onLine until EOF. A line longer than
// maxLine is discarded up to its newline and counted in dropped; reading
// continues with the next line.
func readLines(ctx context.Context, r io.Reader, maxLine int, onLine func(string)) (dropped int, err error) {
	reader := bufio.NewReaderSize(r, 4096)
	var (
		sb       strings.Builder
		oversize bool
	)
	for {
		frag, isPrefix, rerr := reader.ReadLine()
		if len(frag) > 0 && !oversize {
			if sb.Len()+len(frag) > maxLine {
				oversize = true
				sb.Reset()
			} else {
				sb.Write(frag)
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				if oversize {
					dropped++
				} else if sb.Len() > 0 {
					onLine(sb.String())
				}
				return dropped, nil
			}
			return dropped, transportError(ctx, rerr)
		}
		if isPrefix {
			continue
		}
		if oversize {
			dropped++
			oversize = false
		} else {
			onLine(sb.String())
		}
		sb.Reset()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dropped, ctxErr
		}
	}
}

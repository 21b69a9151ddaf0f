// Package plugintest provides in-memory host fakes for plugin tests.
package plugintest

import (
	"context"
	"encoding/json"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/plugin"
)

// Call records one request made through HTTP.
type Call struct {
	URL     string
	Body    []byte
	Headers map[string]string
	Stream  bool
}

// HTTP is a scripted plugin.HTTPService.
type HTTP struct {
	// Response and Err are returned by Post.
	Response string
	Err      error

	// Lines are fed to the StreamPost callback in order, then StreamErr is
	// returned.
	Lines     []string
	StreamErr error

	mu    sync.Mutex
	calls []Call
}

func (h *HTTP) record(url string, body any, opts *plugin.Options, stream bool) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	c := Call{URL: url, Body: b, Stream: stream, Headers: map[string]string{}}
	if opts != nil {
		maps.Copy(c.Headers, opts.Headers)
	}
	h.mu.Lock()
	h.calls = append(h.calls, c)
	h.mu.Unlock()
	return nil
}

// Post implements plugin.HTTPService.
func (h *HTTP) Post(_ context.Context, url string, body any, opts *plugin.Options) (string, error) {
	if err := h.record(url, body, opts, false); err != nil {
		return "", err
	}
	return h.Response, h.Err
}

// StreamPost implements plugin.HTTPService.
func (h *HTTP) StreamPost(ctx context.Context, url string, body any, onLine func(string), opts *plugin.Options) error {
	if err := h.record(url, body, opts, true); err != nil {
		return err
	}
	for _, line := range h.Lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		onLine(line)
	}
	return h.StreamErr
}

// Calls returns a snapshot of recorded calls.
func (h *HTTP) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// LastBody decodes the body of the most recent call into a generic map.
// It returns nil when no call was made.
func (h *HTTP) LastBody() map[string]any {
	calls := h.Calls()
	if len(calls) == 0 {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal(calls[len(calls)-1].Body, &m)
	return m
}

// Context is an in-memory plugin.Context. Settings are kept as JSON.
type Context struct {
	Log      *zap.Logger
	HTTPSvc  plugin.HTTPService
	Messages map[string]string

	mu     sync.Mutex
	stored []byte
	saves  int
}

// NewContext returns a Context with the given transport and the standard
// localization keys mapped to recognizable strings.
func NewContext(h plugin.HTTPService) *Context {
	return &Context{
		Log:     zap.NewNop(),
		HTTPSvc: h,
		Messages: map[string]string{
			plugin.KeyUnsupportedSourceLang: "unsupported source language",
			plugin.KeyUnsupportedTargetLang: "unsupported target language",
		},
	}
}

func (c *Context) Logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func (c *Context) HTTP() plugin.HTTPService { return c.HTTPSvc }

func (c *Context) Localize(key string) string {
	if v, ok := c.Messages[key]; ok {
		return v
	}
	return key
}

func (c *Context) LoadSettings(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stored == nil {
		return nil
	}
	return json.Unmarshal(c.stored, v)
}

func (c *Context) SaveSettings(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = b
	c.saves++
	return nil
}

// Seed stores v as if it had been saved by an earlier session.
func (c *Context) Seed(v any) {
	b, _ := json.Marshal(v)
	c.mu.Lock()
	c.stored = b
	c.mu.Unlock()
}

// Saves returns how many times SaveSettings succeeded.
func (c *Context) Saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

// Stored returns the last saved settings as JSON.
func (c *Context) Stored() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored
}

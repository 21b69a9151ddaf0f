package host

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/mtplugins/internal/cache"
	"github.com/BaSui01/mtplugins/internal/ctxkeys"
	"github.com/BaSui01/mtplugins/internal/settingsstore"
	"github.com/BaSui01/mtplugins/internal/telemetry"
	"github.com/BaSui01/mtplugins/plugin"
)

// Localization keys used by the host itself.
const (
	KeyPluginNotFound = "PluginNotFound"
	KeyNoResult       = "NoResult"
	KeyInvalidRequest = "InvalidRequest"
)

// Localizer resolves user-facing strings. *i18n.Catalog implements it.
type Localizer interface {
	Localize(key string) string
}

// Recorder receives host metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordTranslation(plugin, status string, d time.Duration)
	RecordStreamDelta(plugin string)
	RecordCacheHit(plugin string)
	RecordCacheMiss(plugin string)
	RecordStoreOp(plugin, operation string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordTranslation(string, string, time.Duration) {}
func (nopRecorder) RecordStreamDelta(string)                        {}
func (nopRecorder) RecordCacheHit(string)                           {}
func (nopRecorder) RecordCacheMiss(string)                          {}
func (nopRecorder) RecordStoreOp(string, string, time.Duration)     {}

type keyLocalizer struct{}

func (keyLocalizer) Localize(key string) string { return key }

// Options wires the host. Registry, HTTP and Store are required.
type Options struct {
	Registry *plugin.Registry
	HTTP     plugin.HTTPService
	Store    settingsstore.Store

	Localizer Localizer
	Cache     cache.Cache
	CacheTTL  time.Duration
	Recorder  Recorder
	Logger    *zap.Logger

	// Enabled restricts the loaded plugins; empty loads every registered one.
	Enabled []string
	// MaxParallel caps TranslateAll fan-out; 0 means one goroutine per plugin.
	MaxParallel int
}

type loaded struct {
	t    plugin.Translator
	info plugin.Info
	pc   *pluginContext
}

// Host owns the initialized plugins.
type Host struct {
	plugins map[string]*loaded
	order   []string

	locale      Localizer
	cache       cache.Cache
	cacheTTL    time.Duration
	recorder    Recorder
	instruments *telemetry.Instruments
	logger      *zap.Logger
	maxParallel int

	closeOnce sync.Once
}

// Outcome is the host's view of one finished translation.
type Outcome struct {
	Plugin    string           `json:"plugin"`
	RequestID string           `json:"request_id"`
	Text      string           `json:"text"`
	Succeeded bool             `json:"succeeded"`
	Message   string           `json:"message,omitempty"`
	Code      plugin.ErrorCode `json:"code,omitempty"`
	Cached    bool             `json:"cached,omitempty"`
	Duration  time.Duration    `json:"duration_ns"`
}

// New creates and initializes the selected plugins. A plugin failing Init
// aborts startup and disposes the ones already initialized.
func New(opts Options) (*Host, error) {
	if opts.Registry == nil || opts.HTTP == nil || opts.Store == nil {
		return nil, errors.New("host: registry, http service and settings store are required")
	}
	h := &Host{
		plugins:     make(map[string]*loaded),
		locale:      opts.Localizer,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		recorder:    opts.Recorder,
		logger:      opts.Logger,
		maxParallel: opts.MaxParallel,
	}
	if h.locale == nil {
		h.locale = keyLocalizer{}
	}
	if h.recorder == nil {
		h.recorder = nopRecorder{}
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	h.logger = h.logger.With(zap.String("component", "host"))
	if in, err := telemetry.NewInstruments(); err != nil {
		h.logger.Warn("otel instruments unavailable", zap.Error(err))
	} else {
		h.instruments = in
	}

	ids := opts.Enabled
	if len(ids) == 0 {
		ids = opts.Registry.List()
	}
	for _, id := range ids {
		if _, dup := h.plugins[id]; dup {
			continue
		}
		t, err := opts.Registry.New(id)
		if err != nil {
			h.Close()
			return nil, err
		}
		pc := &pluginContext{
			id:       id,
			logger:   h.logger.With(zap.String("plugin", id)),
			http:     opts.HTTP,
			locale:   h.locale,
			store:    opts.Store,
			recorder: h.recorder,
		}
		if err := t.Init(pc); err != nil {
			h.Close()
			return nil, fmt.Errorf("init plugin %s: %w", id, err)
		}
		h.plugins[id] = &loaded{t: t, info: t.Info(), pc: pc}
		h.order = append(h.order, id)
		h.logger.Info("plugin loaded", zap.String("plugin", id))
	}
	return h, nil
}

// Close disposes every plugin in reverse load order.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		for _, id := range slices.Backward(h.order) {
			h.plugins[id].t.Dispose()
		}
	})
}

// Plugins describes the loaded plugins in load order.
func (h *Host) Plugins() []plugin.Info {
	out := make([]plugin.Info, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.plugins[id].info)
	}
	return out
}

// IDs returns the loaded plugin IDs in load order.
func (h *Host) IDs() []string { return slices.Clone(h.order) }

// Plugin returns the loaded plugin with the given ID.
func (h *Host) Plugin(id string) (plugin.Translator, bool) {
	l, ok := h.plugins[id]
	if !ok {
		return nil, false
	}
	return l.t, true
}

func (h *Host) lookup(id string) (*loaded, error) {
	l, ok := h.plugins[id]
	if !ok {
		return nil, plugin.NewError(plugin.ErrPluginNotFound,
			fmt.Sprintf("%s: %s", h.locale.Localize(KeyPluginNotFound), id))
	}
	return l, nil
}

// requestID prefers the caller's ID, then the one carried by ctx.
func requestID(ctx context.Context, id string) string {
	if id != "" {
		return id
	}
	if id, ok := ctxkeys.RequestID(ctx); ok {
		return id
	}
	return uuid.NewString()
}

func (h *Host) validate(req plugin.Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return plugin.NewError(plugin.ErrInvalidRequest, h.locale.Localize(KeyInvalidRequest)+": empty text")
	}
	if !req.SourceLang.Valid() || !req.TargetLang.Valid() {
		return plugin.NewError(plugin.ErrInvalidRequest, h.locale.Localize(KeyInvalidRequest)+": unknown language")
	}
	return nil
}

// Translate runs one plugin. onDelta, when non-nil, receives streamed text as
// it arrives; a cache hit delivers the whole text as a single delta.
//
// The returned error is reserved for requests the host rejects (unknown
// plugin, empty text). Plugin failures are reported in the Outcome.
func (h *Host) Translate(ctx context.Context, id string, req plugin.Request, onDelta func(string)) (*Outcome, error) {
	l, err := h.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := h.validate(req); err != nil {
		return nil, err
	}
	req.ID = requestID(ctx, req.ID)
	return h.dispatch(ctx, l, req, onDelta), nil
}

func (h *Host) dispatch(ctx context.Context, l *loaded, req plugin.Request, onDelta func(string)) *Outcome {
	id := l.info.ID
	start := time.Now()
	logger := l.pc.logger.With(zap.String("request_id", req.ID))

	ctx, span := telemetry.Tracer().Start(ctx, "plugin.translate")
	defer span.End()
	span.SetAttributes(
		attribute.String("plugin.id", id),
		attribute.String("request.id", req.ID),
		attribute.String("lang.source", req.SourceLang.Code()),
		attribute.String("lang.target", req.TargetLang.Code()),
		attribute.Int("text.length", len(req.Text)),
	)

	out := &Outcome{Plugin: id, RequestID: req.ID}
	finish := func(status string) *Outcome {
		out.Duration = time.Since(start)
		h.recorder.RecordTranslation(id, status, out.Duration)
		h.instruments.RecordTranslation(ctx, id, status, out.Duration)
		span.SetAttributes(attribute.String("translation.status", status))
		return out
	}

	key := ""
	if h.cache != nil {
		key = cache.Key(id, l.pc.settingsDigest(), req.SourceLang.Code(), req.TargetLang.Code(), req.Text)
		if text, err := h.cache.Get(ctx, key); err == nil {
			h.recorder.RecordCacheHit(id)
			span.AddEvent("cache.hit")
			out.Text, out.Succeeded, out.Cached = text, true, true
			if onDelta != nil {
				onDelta(text)
			}
			return finish("cached")
		} else if !cache.IsCacheMiss(err) {
			logger.Warn("cache lookup failed", zap.Error(err))
		}
		h.recorder.RecordCacheMiss(id)
	}

	res := &plugin.Result{}
	if onDelta != nil || l.info.Streaming {
		res.OnAppend = func(delta string) {
			h.recorder.RecordStreamDelta(id)
			if onDelta != nil {
				onDelta(delta)
			}
		}
	}

	// A plugin may keep mutating req; give it its own copy.
	r := req
	if err := l.t.Translate(ctx, &r, res); err != nil {
		res.Fail(err.Error())
		out.Code = plugin.CodeOf(err)
		if out.Code == "" && errors.Is(err, context.DeadlineExceeded) {
			out.Code = plugin.ErrUpstreamTimeout
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(out.Code))
		logger.Warn("translation failed", zap.String("code", string(out.Code)), zap.Error(err))
	} else if !res.Done() {
		res.Fail(h.locale.Localize(KeyNoResult))
	}

	out.Text = res.Text
	out.Succeeded = res.Succeeded
	out.Message = res.Message
	if !res.Succeeded {
		return finish("failed")
	}

	if key != "" {
		if err := h.cache.Set(ctx, key, res.Text, h.cacheTTL); err != nil {
			logger.Warn("cache store failed", zap.Error(err))
		}
	}
	return finish("success")
}

// TranslateAll runs req through several plugins concurrently and returns
// the outcomes in the order of ids. An empty ids means every loaded plugin.
// onDelta calls are serialized across plugins.
func (h *Host) TranslateAll(ctx context.Context, ids []string, req plugin.Request, onDelta func(pluginID, delta string)) ([]*Outcome, error) {
	if len(ids) == 0 {
		ids = h.order
	}
	targets := make([]*loaded, len(ids))
	for i, id := range ids {
		l, err := h.lookup(id)
		if err != nil {
			return nil, err
		}
		targets[i] = l
	}
	if err := h.validate(req); err != nil {
		return nil, err
	}
	req.ID = requestID(ctx, req.ID)

	var mu sync.Mutex
	outcomes := make([]*Outcome, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	if h.maxParallel > 0 {
		g.SetLimit(h.maxParallel)
	}
	for i, l := range targets {
		var sink func(string)
		if onDelta != nil {
			sink = func(delta string) {
				mu.Lock()
				defer mu.Unlock()
				onDelta(l.info.ID, delta)
			}
		}
		g.Go(func() error {
			outcomes[i] = h.dispatch(gctx, l, req, sink)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, nil
}

package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/internal/cache"
	"github.com/BaSui01/mtplugins/internal/ctxkeys"
	"github.com/BaSui01/mtplugins/internal/i18n"
	"github.com/BaSui01/mtplugins/internal/settingsstore"
	"github.com/BaSui01/mtplugins/lang"
	"github.com/BaSui01/mtplugins/plugin"
	"github.com/BaSui01/mtplugins/plugin/plugintest"
	"github.com/BaSui01/mtplugins/plugins/qwenmt"
	"github.com/BaSui01/mtplugins/plugins/thinking"
)

// =============================================================================
// helpers
// =============================================================================

type recorder struct {
	mu      sync.Mutex
	counts  map[string]int
	storeOp map[string]int
}

func newRecorder() *recorder {
	return &recorder{counts: map[string]int{}, storeOp: map[string]int{}}
}

func (r *recorder) inc(k string) {
	r.mu.Lock()
	r.counts[k]++
	r.mu.Unlock()
}

func (r *recorder) RecordTranslation(p, status string, _ time.Duration) { r.inc(p + ":" + status) }
func (r *recorder) RecordStreamDelta(p string)                          { r.inc(p + ":delta") }
func (r *recorder) RecordCacheHit(p string)                             { r.inc(p + ":hit") }
func (r *recorder) RecordCacheMiss(p string)                            { r.inc(p + ":miss") }
func (r *recorder) RecordStoreOp(p, op string, _ time.Duration) {
	r.mu.Lock()
	r.storeOp[p+":"+op]++
	r.mu.Unlock()
}

func (r *recorder) get(k string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[k]
}

type stubPlugin struct {
	id        string
	streaming bool
	initErr   error
	disposed  *atomic.Int32
	translate func(ctx context.Context, req *plugin.Request, res *plugin.Result) error
}

func (s *stubPlugin) Info() plugin.Info                         { return plugin.Info{ID: s.id, Streaming: s.streaming} }
func (s *stubPlugin) Init(plugin.Context) error                 { return s.initErr }
func (s *stubPlugin) SourceLanguage(l lang.Lang) (string, bool) { return l.Code(), true }
func (s *stubPlugin) TargetLanguage(l lang.Lang) (string, bool) { return l.Code(), true }
func (s *stubPlugin) Dispose() {
	if s.disposed != nil {
		s.disposed.Add(1)
	}
}

func (s *stubPlugin) Translate(ctx context.Context, req *plugin.Request, res *plugin.Result) error {
	if s.translate == nil {
		res.Success(s.id + ":" + req.Text)
		return nil
	}
	return s.translate(ctx, req, res)
}

func fileStore(t *testing.T) settingsstore.Store {
	t.Helper()
	s, err := settingsstore.NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func newHost(t *testing.T, opts Options) *Host {
	t.Helper()
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Store == nil {
		opts.Store = fileStore(t)
	}
	if opts.HTTP == nil {
		opts.HTTP = &plugintest.HTTP{}
	}
	h, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func request(text string) plugin.Request {
	return plugin.Request{Text: text, SourceLang: lang.English, TargetLang: lang.ChineseSimplified}
}

const qwenOK = `{"choices":[{"message":{"content":"你好"}}]}`

// =============================================================================
// lifecycle
// =============================================================================

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_LoadsBuiltinPlugins(t *testing.T) {
	rec := newRecorder()
	h := newHost(t, Options{Recorder: rec})

	assert.Equal(t, []string{qwenmt.ID, thinking.ID}, h.IDs())
	infos := h.Plugins()
	require.Len(t, infos, 2)
	assert.False(t, infos[0].Streaming)
	assert.True(t, infos[1].Streaming)

	_, ok := h.Plugin("nope")
	assert.False(t, ok)
	assert.Equal(t, 1, rec.storeOp[qwenmt.ID+":load"])
}

func TestNew_EnabledSubset(t *testing.T) {
	h := newHost(t, Options{Enabled: []string{thinking.ID, thinking.ID}})
	assert.Equal(t, []string{thinking.ID}, h.IDs())

	_, err := New(Options{Registry: DefaultRegistry(), HTTP: &plugintest.HTTP{}, Store: fileStore(t), Enabled: []string{"deepl"}})
	assert.Equal(t, plugin.ErrPluginNotFound, plugin.CodeOf(err))
}

func TestNew_InitFailureDisposesLoaded(t *testing.T) {
	var disposed atomic.Int32
	reg := plugin.NewRegistry()
	reg.Register("a", func() plugin.Translator { return &stubPlugin{id: "a", disposed: &disposed} })
	reg.Register("b", func() plugin.Translator { return &stubPlugin{id: "b", initErr: errors.New("boom")} })

	_, err := New(Options{Registry: reg, HTTP: &plugintest.HTTP{}, Store: fileStore(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init plugin b")
	assert.Equal(t, int32(1), disposed.Load())
}

func TestClose_DisposesOnce(t *testing.T) {
	h := newHost(t, Options{})
	p, _ := h.Plugin(qwenmt.ID)
	m := p.(*qwenmt.Plugin).Settings()

	h.Close()
	h.Close()
	assert.ErrorIs(t, m.SetAPIKey("x"), qwenmt.ErrSettingsClosed)
}

func TestSettingsPersistAcrossHosts(t *testing.T) {
	store := fileStore(t)
	h := newHost(t, Options{Store: store})
	p, _ := h.Plugin(thinking.ID)
	require.NoError(t, p.(*thinking.Plugin).Settings().SetThinkingEnabled(true))
	h.Close()

	h2 := newHost(t, Options{Store: store})
	p2, _ := h2.Plugin(thinking.ID)
	assert.True(t, p2.(*thinking.Plugin).Settings().Snapshot().ThinkingEnabled)
}

// =============================================================================
// dispatch
// =============================================================================

func TestTranslate_Success(t *testing.T) {
	rec := newRecorder()
	h := newHost(t, Options{HTTP: &plugintest.HTTP{Response: qwenOK}, Recorder: rec})

	out, err := h.Translate(context.Background(), qwenmt.ID, request("hello"), nil)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "你好", out.Text)
	assert.Equal(t, qwenmt.ID, out.Plugin)
	_, perr := uuid.Parse(out.RequestID)
	assert.NoError(t, perr)
	assert.Equal(t, 1, rec.get(qwenmt.ID+":success"))
}

func TestTranslate_RecordsOTelMetrics(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	h := newHost(t, Options{HTTP: &plugintest.HTTP{Response: qwenOK}})
	_, err := h.Translate(context.Background(), qwenmt.ID, request("hello"), nil)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == "mtplugins.translation.total" {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), total)
}

func TestTranslate_KeepsRequestID(t *testing.T) {
	h := newHost(t, Options{HTTP: &plugintest.HTTP{Response: qwenOK}})
	req := request("hello")
	req.ID = "req-42"

	out, err := h.Translate(context.Background(), qwenmt.ID, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "req-42", out.RequestID)

	ctx := ctxkeys.WithRequestID(context.Background(), "http-7")
	out, err = h.Translate(ctx, qwenmt.ID, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "req-42", out.RequestID, "explicit id wins")

	out, err = h.Translate(ctx, qwenmt.ID, request("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, "http-7", out.RequestID)
}

func TestTranslate_Rejects(t *testing.T) {
	cat, err := i18n.New("en")
	require.NoError(t, err)
	h := newHost(t, Options{Localizer: cat})

	_, err = h.Translate(context.Background(), "deepl", request("x"), nil)
	assert.Equal(t, plugin.ErrPluginNotFound, plugin.CodeOf(err))
	assert.Contains(t, err.Error(), "Plugin not found: deepl")

	_, err = h.Translate(context.Background(), qwenmt.ID, request("  "), nil)
	assert.Equal(t, plugin.ErrInvalidRequest, plugin.CodeOf(err))

	bad := request("x")
	bad.TargetLang = lang.Lang(200)
	_, err = h.Translate(context.Background(), qwenmt.ID, bad, nil)
	assert.Equal(t, plugin.ErrInvalidRequest, plugin.CodeOf(err))
}

func TestTranslate_PluginErrorBecomesFailure(t *testing.T) {
	rec := newRecorder()
	h := newHost(t, Options{HTTP: &plugintest.HTTP{Response: `{"choices":[]}`}, Recorder: rec})

	out, err := h.Translate(context.Background(), qwenmt.ID, request("hello"), nil)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, plugin.ErrNoResult, out.Code)
	assert.Contains(t, out.Message, "No result.")
	assert.Contains(t, out.Message, `{"choices":[]}`)
	assert.Equal(t, 1, rec.get(qwenmt.ID+":failed"))
}

func TestTranslate_FailFastHasNoCode(t *testing.T) {
	cat, _ := i18n.New("zh-CN")
	http := &plugintest.HTTP{}
	h := newHost(t, Options{HTTP: http, Localizer: cat})

	req := request("hello")
	req.SourceLang = lang.MongolianCyrillic
	out, err := h.Translate(context.Background(), qwenmt.ID, req, nil)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, "不支持的源语言", out.Message)
	assert.Empty(t, out.Code)
	assert.Empty(t, http.Calls())
}

func TestTranslate_DeadlineMapsToTimeout(t *testing.T) {
	reg := plugin.NewRegistry()
	reg.Register("slow", func() plugin.Translator {
		return &stubPlugin{id: "slow", translate: func(ctx context.Context, _ *plugin.Request, _ *plugin.Result) error {
			<-ctx.Done()
			return fmt.Errorf("slow: %w", ctx.Err())
		}}
	})
	h := newHost(t, Options{Registry: reg})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	out, err := h.Translate(ctx, "slow", request("x"), nil)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, plugin.ErrUpstreamTimeout, out.Code)
}

func TestTranslate_UnfinishedResultFails(t *testing.T) {
	reg := plugin.NewRegistry()
	reg.Register("lazy", func() plugin.Translator {
		return &stubPlugin{id: "lazy", translate: func(context.Context, *plugin.Request, *plugin.Result) error { return nil }}
	})
	h := newHost(t, Options{Registry: reg})

	out, err := h.Translate(context.Background(), "lazy", request("x"), nil)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, KeyNoResult, out.Message)
}

func TestTranslate_Stream(t *testing.T) {
	rec := newRecorder()
	lines := []string{
		`data: {"choices":[{"delta":{"reasoning_content":"hmm"}}]}`,
		`data: {"choices":[{"delta":{"content":"Hallo"}}]}`,
		"data: [DONE]",
	}
	h := newHost(t, Options{HTTP: &plugintest.HTTP{Lines: lines}, Recorder: rec})

	var deltas []string
	out, err := h.Translate(context.Background(), thinking.ID, request("hello"), func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "🤔 [Deep Thinking]\nhmm\n\n🚀 [Translation]\nHallo", out.Text)
	assert.Len(t, deltas, 4)
	assert.Equal(t, 4, rec.get(thinking.ID+":delta"))
}

// =============================================================================
// cache
// =============================================================================

func TestTranslate_CacheHitSkipsPlugin(t *testing.T) {
	c, err := cache.NewBadgerCache(cache.BadgerConfig{InMemory: true}, time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	rec := newRecorder()
	http := &plugintest.HTTP{Response: qwenOK}
	h := newHost(t, Options{HTTP: http, Cache: c, Recorder: rec})
	ctx := context.Background()

	first, err := h.Translate(ctx, qwenmt.ID, request("hello"), nil)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	var deltas []string
	second, err := h.Translate(ctx, qwenmt.ID, request("hello"), func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "你好", second.Text)
	assert.Equal(t, []string{"你好"}, deltas)
	assert.Len(t, http.Calls(), 1)
	assert.Equal(t, 1, rec.get(qwenmt.ID+":hit"))
	assert.Equal(t, 1, rec.get(qwenmt.ID+":cached"))

	// A settings change yields a different key.
	p, _ := h.Plugin(qwenmt.ID)
	require.NoError(t, p.(*qwenmt.Plugin).Settings().SelectModel("qwen-mt-plus"))
	third, err := h.Translate(ctx, qwenmt.ID, request("hello"), nil)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, http.Calls(), 2)
}

// failingStore wraps a store whose Save can be switched to fail.
type failingStore struct {
	settingsstore.Store
	fail atomic.Bool
}

func (s *failingStore) Save(ctx context.Context, id string, v any) error {
	if s.fail.Load() {
		return errors.New("disk full")
	}
	return s.Store.Save(ctx, id, v)
}

func TestTranslate_UnsavedSettingsChangeMissesCache(t *testing.T) {
	c, err := cache.NewBadgerCache(cache.BadgerConfig{InMemory: true}, time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	store := &failingStore{Store: fileStore(t)}
	http := &plugintest.HTTP{Response: qwenOK}
	h := newHost(t, Options{HTTP: http, Cache: c, Store: store})
	ctx := context.Background()

	_, err = h.Translate(ctx, qwenmt.ID, request("hello"), nil)
	require.NoError(t, err)

	store.fail.Store(true)
	p, _ := h.Plugin(qwenmt.ID)
	settings := p.(*qwenmt.Plugin).Settings()
	_, err = settings.AddModel("qwen-mt-plus-new")
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, "qwen-mt-plus-new", settings.Snapshot().Model)

	out, err := h.Translate(ctx, qwenmt.ID, request("hello"), nil)
	require.NoError(t, err)
	assert.False(t, out.Cached, "the live settings changed even though saving failed")
	assert.Len(t, http.Calls(), 2)
}

func TestTranslate_FailuresAreNotCached(t *testing.T) {
	c, err := cache.NewBadgerCache(cache.BadgerConfig{InMemory: true}, time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	http := &plugintest.HTTP{Response: `{}`}
	h := newHost(t, Options{HTTP: http, Cache: c})

	for range 2 {
		out, err := h.Translate(context.Background(), qwenmt.ID, request("hello"), nil)
		require.NoError(t, err)
		assert.False(t, out.Cached)
	}
	assert.Len(t, http.Calls(), 2)
}

// =============================================================================
// fan-out
// =============================================================================

func TestTranslateAll_OrderAndIsolation(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	reg := plugin.NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		reg.Register(id, func() plugin.Translator {
			return &stubPlugin{id: id, streaming: true, translate: func(_ context.Context, req *plugin.Request, res *plugin.Result) error {
				started.Add(1)
				<-release
				res.Append(id)
				res.Append("!")
				res.Complete()
				return nil
			}}
		})
	}
	h := newHost(t, Options{Registry: reg})

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	perPlugin := map[string]string{}
	done := make(chan []*Outcome, 1)
	go func() {
		outs, err := h.TranslateAll(context.Background(), []string{"c", "a", "b"}, request("x"), func(id, d string) {
			mu.Lock()
			inFlight++
			maxInFlight = max(maxInFlight, inFlight)
			mu.Unlock()
			perPlugin[id] += d
			mu.Lock()
			inFlight--
			mu.Unlock()
		})
		assert.NoError(t, err)
		done <- outs
	}()

	require.Eventually(t, func() bool { return started.Load() == 3 }, 5*time.Second, 5*time.Millisecond)
	close(release)
	outs := <-done

	require.Len(t, outs, 3)
	for i, id := range []string{"c", "a", "b"} {
		assert.Equal(t, id, outs[i].Plugin)
		assert.Equal(t, id+"!", outs[i].Text)
		assert.True(t, outs[i].Succeeded)
		assert.Equal(t, outs[0].RequestID, outs[i].RequestID)
	}
	assert.Equal(t, map[string]string{"a": "a!", "b": "b!", "c": "c!"}, perPlugin)
	assert.Equal(t, 1, maxInFlight)
}

func TestTranslateAll_DefaultsToAllAndLimits(t *testing.T) {
	var running, peak atomic.Int32
	reg := plugin.NewRegistry()
	for _, id := range []string{"a", "b", "c", "d"} {
		reg.Register(id, func() plugin.Translator {
			return &stubPlugin{id: id, translate: func(_ context.Context, req *plugin.Request, res *plugin.Result) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				res.Success(id)
				return nil
			}}
		})
	}
	h := newHost(t, Options{Registry: reg, MaxParallel: 2})

	outs, err := h.TranslateAll(context.Background(), nil, request("x"), nil)
	require.NoError(t, err)
	require.Len(t, outs, 4)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestTranslateAll_UnknownPlugin(t *testing.T) {
	h := newHost(t, Options{})
	_, err := h.TranslateAll(context.Background(), []string{qwenmt.ID, "deepl"}, request("x"), nil)
	assert.Equal(t, plugin.ErrPluginNotFound, plugin.CodeOf(err))
}

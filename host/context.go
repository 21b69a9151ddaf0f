package host

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/internal/settingsstore"
	"github.com/BaSui01/mtplugins/plugin"
)

// storeTimeout bounds one settings load or save. Plugins call SaveSettings
// from setters that carry no context.
const storeTimeout = 10 * time.Second

// pluginContext is the plugin.Context handed to one plugin.
type pluginContext struct {
	id       string
	logger   *zap.Logger
	http     plugin.HTTPService
	locale   Localizer
	store    settingsstore.Store
	recorder Recorder

	mu     sync.RWMutex
	digest string
}

var _ plugin.Context = (*pluginContext)(nil)

func (c *pluginContext) Logger() *zap.Logger        { return c.logger }
func (c *pluginContext) HTTP() plugin.HTTPService   { return c.http }
func (c *pluginContext) Localize(key string) string { return c.locale.Localize(key) }

func (c *pluginContext) LoadSettings(v any) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	start := time.Now()
	found, err := c.store.Load(ctx, c.id, v)
	c.recorder.RecordStoreOp(c.id, "load", time.Since(start))
	if err != nil {
		return fmt.Errorf("load settings of %s: %w", c.id, err)
	}
	c.logger.Debug("settings loaded", zap.Bool("found", found))
	c.remember(v)
	return nil
}

func (c *pluginContext) SaveSettings(v any) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	// 设置模型在保存失败时仍保留改动，摘要必须跟随内存中的设置
	c.remember(v)

	start := time.Now()
	err := c.store.Save(ctx, c.id, v)
	c.recorder.RecordStoreOp(c.id, "save", time.Since(start))
	if err != nil {
		c.logger.Error("save settings failed", zap.Error(err))
		return fmt.Errorf("save settings of %s: %w", c.id, err)
	}
	return nil
}

// remember records a digest of the current settings. Cached results are
// keyed by it so that a settings change never serves a stale translation.
func (c *pluginContext) remember(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	sum := sha256.Sum256(b)
	c.mu.Lock()
	c.digest = hex.EncodeToString(sum[:8])
	c.mu.Unlock()
}

func (c *pluginContext) settingsDigest() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.digest
}

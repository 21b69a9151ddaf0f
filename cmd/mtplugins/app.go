package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/config"
	"github.com/BaSui01/mtplugins/host"
	"github.com/BaSui01/mtplugins/internal/cache"
	"github.com/BaSui01/mtplugins/internal/httpservice"
	"github.com/BaSui01/mtplugins/internal/i18n"
	"github.com/BaSui01/mtplugins/internal/metrics"
	"github.com/BaSui01/mtplugins/internal/settingsstore"
	"github.com/BaSui01/mtplugins/internal/telemetry"
	"github.com/BaSui01/mtplugins/plugin"
)

// =============================================================================
// 🧩 应用装配
// =============================================================================

// app 持有一次进程运行所需的全部组件
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	otel      *telemetry.Providers
	collector *metrics.Collector
	locale    *i18n.Catalog
	store     settingsstore.Store
	cache     cache.Cache
	host      *host.Host
}

type appOptions struct {
	registry  *plugin.Registry
	namespace string
}

type appOption func(*appOptions)

// withRegistry 替换内置插件注册表（测试用）
func withRegistry(r *plugin.Registry) appOption {
	return func(o *appOptions) { o.registry = r }
}

// withMetricsNamespace 指定 Prometheus 命名空间
func withMetricsNamespace(ns string) appOption {
	return func(o *appOptions) { o.namespace = ns }
}

// loadConfig 按 默认值 → YAML → 环境变量 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp 依次初始化 遥测 → 指标 → 上游 HTTP → 设置存储 → 缓存 → 本地化 → 插件宿主。
// 任何一步失败都会释放已创建的组件。
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...appOption) (a *app, err error) {
	o := appOptions{registry: host.DefaultRegistry(), namespace: "mtplugins"}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	a.otel, err = telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		// 遥测不可用不影响翻译
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		a.otel, err = &telemetry.Providers{}, nil
	}

	a.collector = metrics.NewCollector(o.namespace, logger)

	upstream, err := httpservice.New(cfg.HTTP, logger, httpservice.WithObserver(a.collector))
	if err != nil {
		return nil, fmt.Errorf("http service: %w", err)
	}

	a.store, err = settingsstore.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("settings store: %w", err)
	}

	a.cache, err = cache.Open(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	a.locale, err = i18n.New(cfg.Plugins.Locale)
	if err != nil {
		return nil, err
	}

	a.host, err = host.New(host.Options{
		Registry:  o.registry,
		HTTP:      upstream,
		Store:     a.store,
		Localizer: a.locale,
		Cache:     a.cache,
		CacheTTL:  cfg.Cache.TTL,
		Recorder:  a.collector,
		Logger:    logger,
		Enabled:   cfg.Plugins.Enabled,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close 按创建的逆序释放组件
func (a *app) Close() {
	if a.host != nil {
		a.host.Close()
	}
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.otel.Shutdown(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// bootstrap 供子命令使用：加载配置、初始化日志并装配 app
func bootstrap(ctx context.Context, configPath string, opts ...appOption) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := initLogger(cfg.Log)
	a, err := newApp(ctx, cfg, logger, opts...)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

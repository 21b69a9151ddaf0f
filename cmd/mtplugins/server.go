package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/mtplugins/internal/server"
)

// 路由
const (
	pathHealth          = "/health"
	pathVersion         = "/version"
	pathPlugins         = "/api/v1/plugins"
	pathTranslate       = "/api/v1/translate"
	pathTranslateStream = "/api/v1/translate/stream"
	pathMetrics         = "/metrics"
)

// poolStatsInterval 数据库连接池指标的采样间隔
const poolStatsInterval = 15 * time.Second

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 是 mtplugins 的 HTTP API 服务器
type Server struct {
	app    *app
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer 创建服务器，监听地址来自配置
func NewServer(a *app) *Server {
	return &Server{app: a, logger: a.logger.With(zap.String("component", "api"))}
}

// Handler 构建带中间件链的 API 路由。ctx 控制限流器的后台清理。
func (s *Server) Handler(ctx context.Context) http.Handler {
	cfg := s.app.cfg.Server

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+pathHealth, s.handleHealth)
	mux.HandleFunc("GET "+pathVersion, s.handleVersion)
	mux.HandleFunc("GET "+pathPlugins, s.handlePlugins)
	mux.HandleFunc("POST "+pathTranslate, s.handleTranslate)
	mux.HandleFunc("POST "+pathTranslateStream, s.handleTranslateStream)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.app.collector),
		CORS(cfg.CORSAllowedOrigins),
	}
	if cfg.RateLimitRPS > 0 {
		middlewares = append(middlewares, RateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, s.logger))
	}
	if s.app.cfg.Auth.Enabled() {
		middlewares = append(middlewares, Authenticate(s.app.cfg.Auth, []string{pathHealth, pathVersion}, s.logger))
	}
	return Chain(mux, middlewares...)
}

// Run 启动 API 与 Metrics 服务器，阻塞到 ctx 结束或任一服务器失败
func (s *Server) Run(ctx context.Context) error {
	cfg := s.app.cfg.Server
	g, gctx := errgroup.WithContext(ctx)

	s.httpManager = server.NewManager(s.Handler(gctx), server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", cfg.HTTPPort),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     2 * cfg.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}
	g.Go(func() error { return s.httpManager.Run(gctx) })

	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle(pathMetrics, promhttp.Handler())
		s.metricsManager = server.NewManager(mux, server.Config{
			Name:            "metrics",
			Addr:            fmt.Sprintf(":%d", cfg.MetricsPort),
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, s.logger)
		if err := s.metricsManager.Start(); err != nil {
			_ = s.httpManager.Shutdown(context.WithoutCancel(ctx))
			return err
		}
		g.Go(func() error { return s.metricsManager.Run(gctx) })
	}

	if ps, ok := s.app.store.(interface{ PoolStats() (int, int) }); ok {
		g.Go(func() error {
			s.recordPoolStats(gctx, ps.PoolStats)
			return nil
		})
	}

	s.logger.Info("All servers started",
		zap.String("api_addr", s.httpManager.Addr()),
		zap.Int("metrics_port", cfg.MetricsPort),
		zap.Strings("plugins", s.app.host.IDs()),
	)
	return g.Wait()
}

func (s *Server) recordPoolStats(ctx context.Context, stats func() (int, int)) {
	driver := s.app.cfg.Storage.Driver
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		open, idle := stats()
		s.app.collector.RecordDBConnections(driver, open, idle)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// =============================================================================
// 🚀 serve 命令
// =============================================================================

func runServe(ctx context.Context, args []string, _ io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	return withApp(ctx, *configPath, func(ctx context.Context, a *app) error {
		a.logger.Info("Starting mtplugins",
			zap.String("version", Version),
			zap.String("build_time", BuildTime),
			zap.String("git_commit", GitCommit),
		)
		err := NewServer(a).Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		a.logger.Info("mtplugins stopped")
		return nil
	})
}

// =============================================================================
// 📦 mtplugins 默认配置
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/mtplugins/internal/cache"
	"github.com/BaSui01/mtplugins/internal/httpservice"
	"github.com/BaSui01/mtplugins/internal/settingsstore"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		HTTP:      httpservice.DefaultConfig(),
		Storage:   settingsstore.DefaultConfig(),
		Cache:     cache.DefaultConfig(),
		Plugins:   PluginsConfig{Locale: "en"},
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RequestTimeout:  2 * time.Minute,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "mtplugins",
		SampleRate:   0.1,
	}
}

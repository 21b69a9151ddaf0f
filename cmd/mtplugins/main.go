// =============================================================================
// mtplugins 主入口
// =============================================================================
// 翻译插件宿主：命令行翻译、插件设置管理、HTTP API 服务
//
// 使用方法:
//
//	mtplugins translate --plugin qwenmt --from en --to zh-cn Hello
//	mtplugins models list --plugin thinking
//	mtplugins terms import --file glossary.json
//	mtplugins settings set --plugin thinking url https://...
//	mtplugins langs --plugin qwenmt
//	mtplugins serve --config config.yaml
//	mtplugins version
//	mtplugins health --addr http://localhost:8080
// =============================================================================

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/mtplugins/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// command 是一个子命令的实现
type command func(ctx context.Context, args []string, stdout io.Writer) error

var commands = map[string]command{
	"translate": runTranslate,
	"models":    runModels,
	"terms":     runTerms,
	"settings":  runSettings,
	"langs":     runLangs,
	"serve":     runServe,
	"health":    runHealthCheck,
}

// errUsage 表示参数错误，已经打印过用法
var errUsage = errors.New("usage error")

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	// .env 不存在时忽略
	_ = godotenv.Load()

	switch name := os.Args[1]; name {
	case "version":
		printVersion(os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		cmd, ok := commands[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
			printUsage(os.Stderr)
			os.Exit(1)
		}
		if err := cmd(context.Background(), os.Args[2:], os.Stdout); err != nil {
			if !errors.Is(err, errUsage) {
				fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			}
			os.Exit(1)
		}
	}
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *addr+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	fmt.Fprintln(stdout, "OK")
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "mtplugins %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `mtplugins - machine translation plugin host

Usage:
  mtplugins <command> [options]

Commands:
  translate   Translate text with one plugin or all of them
  models      List, add, select or delete models of a plugin
  terms       Manage the Qwen-MT glossary
  settings    Show or change plugin settings
  langs       Show the language mapping of a plugin
  serve       Start the HTTP API server
  version     Show version information
  health      Check server health
  help        Show this help message

Common options:
  --config <path>   Path to configuration file (YAML)

Examples:
  mtplugins translate --plugin all --from en --to zh-cn "Hello world"
  mtplugins settings set --plugin qwenmt api_key sk-xxx
  mtplugins models add --plugin thinking deepseek-r1
  mtplugins terms export --file glossary.json
  mtplugins langs --plugin thinking
  mtplugins serve --config /etc/mtplugins/config.yaml
  mtplugins health --addr http://localhost:8080`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger 全局结构化日志器，写 stderr，不污染 CLI 输出
// Logger is the global structured logger; it writes to stderr so CLI output
// stays clean
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
}

// Configure 按级别和开发模式初始化全局日志器
// Configure sets up the global logger with the given level and dev mode
func Configure(level string, isDev bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var writer io.Writer = os.Stderr
	if isDev {
		// 开发模式使用彩色控制台输出 / Pretty console output for development
		writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	Logger = zerolog.New(writer).With().Timestamp().Logger().Level(lvl)
}

// With 派生带组件字段的日志器
// With derives a logger tagged with a component field
func With(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// Package log 提供基于 zerolog 的日志工具，支持 stdout/stderr 和文件输出（lumberjack 轮转）.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/tagdrop/pkg/configs"
)

var (
	mu     sync.RWMutex
	logger zerolog.Logger
	inited bool
)

// Init 按配置初始化全局 logger，可重复调用（例如配置热重载后）.
func Init(cfg configs.LogConfig, debug bool) {
	l := build(cfg, debug)

	mu.Lock()
	logger = l
	inited = true
	mu.Unlock()

	log.Logger = l
}

func build(cfg configs.LogConfig, debug bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		if cfg.Level != "" {
			fmt.Fprintf(os.Stderr, "invalid log level %q, defaulting to info\n", cfg.Level)
		}

		lvl = zerolog.InfoLevel
	}

	if debug && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(lvl)

	var writers []io.Writer

	switch cfg.Console {
	case "none":
	case "stdout":
		writers = append(writers, consoleWriter(os.Stdout, cfg.JSON))
	default:
		writers = append(writers, consoleWriter(os.Stderr, cfg.JSON))
	}

	if f := cfg.File; f.Enabled {
		writers = append(writers, &lumberjack.Logger{
			Filename:   f.Path,
			MaxSize:    f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAge:     f.MaxAgeDays,
			Compress:   f.Compress,
		})
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	zctx := zerolog.New(io.MultiWriter(writers...)).With()
	if debug {
		zctx = zctx.Caller().Stack()

		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return zctx.Timestamp().Logger()
}

func consoleWriter(out io.Writer, json bool) io.Writer {
	if json {
		return out
	}

	return zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = out
		w.TimeFormat = time.Kitchen
	})
}

// Logger 返回全局 logger，未初始化时使用默认配置.
func Logger() *zerolog.Logger {
	mu.RLock()
	if inited {
		l := logger
		mu.RUnlock()

		return &l
	}
	mu.RUnlock()

	Init(configs.Default().Log, false)

	return Logger()
}

// Component 返回带 component 字段的子 logger.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// Ctx 为 logger 附加当前 span 的 trace_id/span_id（若存在）.
func Ctx(ctx context.Context, l *zerolog.Logger) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}

	out := l.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()

	return &out
}

// GinWriter 把 Gin 文本行转发为 zerolog 事件.
type GinWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
}

func NewGinWriter(logger *zerolog.Logger, level zerolog.Level) *GinWriter {
	return &GinWriter{logger: logger, level: level}
}

func (w *GinWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))

	switch w.level {
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		w.logger.Error().Msg(msg)
	case zerolog.WarnLevel:
		w.logger.Warn().Msg(msg)
	default:
		w.logger.Info().Msg(msg)
	}

	return len(p), nil
}

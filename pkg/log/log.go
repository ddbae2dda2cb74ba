// Package log provides structured logging for marketlens.
//
// Packages depend on the small Logger interface; the default implementation is
// backed by github.com/rs/zerolog. A process configures the global provider
// once with SetupLogger (or SetProvider) and components obtain named loggers
// with GetLoggerWithName:
//
//	log.SetupLogger("info")
//	logger := log.GetLoggerWithName("demand")
//	logger.Info("Training started", log.SamplesKey, n, log.FeaturesKey, 8)
//
// Key/value pairs follow the slog convention: alternating string keys and
// values. A trailing key without a value is logged under "!BADKEY".
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging contract used across marketlens.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}

// Provider hands out named loggers.
type Provider interface {
	GetLoggerWithName(name string) Logger
}

// Level is a logging level independent of the backend.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ToLogLevel parses a level name. Unknown names map to LevelInfo.
func ToLogLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error", "fatal":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ZerologProvider creates zerolog-backed loggers sharing one root logger.
type ZerologProvider struct {
	root zerolog.Logger
}

// NewZerologProvider writes human-readable output to stderr.
func NewZerologProvider(level Level) *ZerologProvider {
	return NewZerologProviderWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, level)
}

// NewZerologProviderWithWriter writes JSON lines (or whatever w renders) to w.
func NewZerologProviderWithWriter(w io.Writer, level Level) *ZerologProvider {
	root := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger()
	return &ZerologProvider{root: root}
}

// GetLoggerWithName returns a logger tagged with the component name.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{zl: p.root.With().Str(ComponentKey, name).Logger()}
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, kv ...interface{}) { l.emit(l.zl.Debug(), msg, kv) }
func (l *zerologLogger) Info(msg string, kv ...interface{})  { l.emit(l.zl.Info(), msg, kv) }
func (l *zerologLogger) Warn(msg string, kv ...interface{})  { l.emit(l.zl.Warn(), msg, kv) }
func (l *zerologLogger) Error(msg string, kv ...interface{}) { l.emit(l.zl.Error(), msg, kv) }

func (l *zerologLogger) With(kv ...interface{}) Logger {
	ctx := l.zl.With()
	for i := 0; i < len(kv); i += 2 {
		key, val := pair(kv, i)
		ctx = ctx.Interface(key, val)
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) emit(ev *zerolog.Event, msg string, kv []interface{}) {
	if ev == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		key, val := pair(kv, i)
		if err, ok := val.(error); ok {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, val)
	}
	ev.Msg(msg)
}

func pair(kv []interface{}, i int) (string, interface{}) {
	key, ok := kv[i].(string)
	if !ok {
		key = "!BADKEY"
	}
	if i+1 >= len(kv) {
		return "!BADKEY", kv[i]
	}
	return key, kv[i+1]
}

var (
	mu             sync.RWMutex
	globalProvider Provider = NewZerologProvider(LevelInfo)
)

// SetupLogger replaces the global provider with a console zerolog provider.
func SetupLogger(level string) {
	SetProvider(NewZerologProvider(ToLogLevel(level)))
}

// Setup is SetupLogger with a choice of output format: "json" writes JSON
// lines to stderr, anything else the console format.
func Setup(level, format string) {
	if format == "json" {
		SetProvider(NewZerologProviderWithWriter(os.Stderr, ToLogLevel(level)))
		return
	}
	SetupLogger(level)
}

// SetProvider replaces the global provider.
func SetProvider(p Provider) {
	mu.Lock()
	defer mu.Unlock()
	globalProvider = p
}

// GetLoggerWithName returns a named logger from the global provider.
func GetLoggerWithName(name string) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalProvider.GetLoggerWithName(name)
}

// LogError logs err at error level on the global "marketlens" logger.
func LogError(err error, msg string, keysAndValues ...interface{}) {
	kv := append([]interface{}{ErrorKey, err}, keysAndValues...)
	GetLoggerWithName("marketlens").Error(msg, kv...)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zerologLogger{zl: zerolog.Nop()}
}

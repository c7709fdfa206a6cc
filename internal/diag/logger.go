package diag

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes one JSON line per event. Every event carries comp, stage
// (start|finish|warn|error) and the run corr_id. A nil *Logger discards.
type Logger struct {
	z    *zap.Logger
	sink *RotatingFile
}

// DefaultMaxLogBytes is the rotation threshold of the log sink.
const DefaultMaxLogBytes = 10 * 1024 * 1024

// NewLogger logs at level into dir/kidslink-current.log, rotating at 10MiB.
// An empty dir logs to stderr.
func NewLogger(corrID, level, dir string) *Logger {
	var ws zapcore.WriteSyncer
	var sink *RotatingFile
	if strings.TrimSpace(dir) == "" {
		ws = zapcore.Lock(os.Stderr)
	} else {
		sink = NewRotatingFile(dir, DefaultMaxLogBytes)
		ws = sink
	}
	core := zapcore.NewCore(newEncoder(), ws, ParseLevel(level))
	l := NewLoggerWithCore(core, corrID)
	l.sink = sink
	return l
}

// NewLoggerWithCore wraps an existing core (tests use zaptest/observer).
func NewLoggerWithCore(core zapcore.Core, corrID string) *Logger {
	z := zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	if corrID != "" {
		z = z.With(zap.String("corr_id", corrID))
	}
	return &Logger{z: z}
}

func newEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.CallerKey = zapcore.OmitKey
	cfg.StacktraceKey = zapcore.OmitKey
	return zapcore.NewJSONEncoder(cfg)
}

// ParseLevel maps debug|info|warn|error; anything else is info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ValidLevel reports whether s names a level ParseLevel understands.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// Start logs a start event and returns a Timer for the matching finish.
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartKV(comp, msg, nil)
}

// StartKV is Start with extra key/values.
func (l *Logger) StartKV(comp, msg string, kv map[string]string) *Timer {
	if l != nil {
		l.z.Info(msg, event(comp, "start", kv)...)
	}
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// Info logs a finish-less progress event.
func (l *Logger) Info(comp, msg string, kv map[string]string) {
	if l == nil {
		return
	}
	l.z.Info(msg, event(comp, "info", kv)...)
}

// Debug logs only when the level is debug.
func (l *Logger) Debug(comp, msg string, kv map[string]string) {
	if l == nil {
		return
	}
	l.z.Debug(msg, event(comp, "debug", kv)...)
}

// Warn logs a recoverable condition (skipped rows, key collisions).
func (l *Logger) Warn(comp, code, msg string, kv map[string]string) {
	if l == nil {
		return
	}
	fields := event(comp, "warn", kv)
	if code != "" {
		fields = append(fields, zap.String("code", code))
	}
	l.z.Warn(msg, fields...)
}

// Error logs an error event; durSince, when set, adds dur_ms.
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	if l == nil {
		return
	}
	fields := append(event(comp, "error", nil), zap.String("code", code))
	if durSince != nil {
		fields = append(fields, zap.Int64("dur_ms", time.Since(*durSince).Milliseconds()))
	}
	l.z.Error(msg, fields...)
}

// Sync flushes and closes the file sink.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	err := l.z.Sync()
	if l.sink != nil {
		if cerr := l.sink.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Timer pairs a start event with its finish.
type Timer struct {
	l    *Logger
	comp string
	t0   time.Time
}

// Started returns the start time.
func (t *Timer) Started() time.Time { return t.t0 }

// Finish logs a finish event with the elapsed time and an optional count.
func (t *Timer) Finish(msg string, count int64) {
	t.FinishKV(msg, count, nil)
}

// FinishKV is Finish with extra key/values.
func (t *Timer) FinishKV(msg string, count int64, kv map[string]string) {
	if t == nil || t.l == nil {
		return
	}
	fields := append(event(t.comp, "finish", kv), zap.Int64("dur_ms", time.Since(t.t0).Milliseconds()))
	if count != 0 {
		fields = append(fields, zap.Int64("count", count))
	}
	t.l.z.Info(msg, fields...)
}

func event(comp, stage string, kv map[string]string) []zap.Field {
	f := []zap.Field{zap.String("comp", comp), zap.String("stage", stage)}
	if len(kv) > 0 {
		f = append(f, zap.Object("kv", kvObject(kv)))
	}
	return f
}

// kvObject encodes a map with sorted keys so log lines are stable.
type kvObject map[string]string

func (m kvObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		enc.AddString(k, m[k])
	}
	return nil
}

// KV builds a key/value map from alternating arguments.
func KV(pairs ...any) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[fmt.Sprint(pairs[i])] = fmt.Sprint(pairs[i+1])
	}
	return m
}

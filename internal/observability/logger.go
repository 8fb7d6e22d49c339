package observability

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rahul/robodriver/pkg/config"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeStep        EventType = "step"
	EventTypePlan        EventType = "plan"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeCost        EventType = "cost"
	EventTypeResult      EventType = "result"
	EventTypeHeartbeat   EventType = "heartbeat"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewZapLogger builds the process logger: console output plus an optional
// rotated JSON file. Standard library log output is redirected into it.
func NewZapLogger(cfg config.LoggerConfig) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var consoleEnc zapcore.Encoder
	if cfg.Format == "json" {
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level)}

	if cfg.LogFile != "" {
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(rotating(cfg, cfg.LogFile)), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
	zap.ReplaceGlobals(logger)
	zap.RedirectStdLog(logger)
	return logger
}

func rotating(cfg config.LoggerConfig, path string) *lumberjack.Logger {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	}
}

// Logger writes run events as JSON lines to a rotated file.
type Logger struct {
	sink *zap.Logger
}

func NewLogger(cfg config.LoggerConfig) *Logger {
	if cfg.EventsFile == "" {
		return NewNopLogger()
	}
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:     "type",
		TimeKey:        "timestamp",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(rotating(cfg, cfg.EventsFile)), zap.DebugLevel)
	return &Logger{sink: zap.New(core)}
}

// NewNopLogger discards every event.
func NewNopLogger() *Logger {
	return &Logger{sink: zap.NewNop()}
}

// Log emits one event.
func (l *Logger) Log(evt Event) {
	if l == nil || l.sink == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	l.sink.Info(string(evt.Type),
		zap.String("run_id", evt.RunID),
		zap.Any("data", evt.Data),
		zap.Time("at", evt.Timestamp),
	)
}

func (l *Logger) Sync() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Sync()
}

// Helper methods for common events

func (l *Logger) LogStep(runID string, step any) {
	l.Log(Event{Type: EventTypeStep, RunID: runID, Data: step})
}

func (l *Logger) LogPlan(runID string, attempt int, action any) {
	l.Log(Event{
		Type:  EventTypePlan,
		RunID: runID,
		Data:  map[string]any{"attempt": attempt, "action": action},
	})
}

func (l *Logger) LogPolicyCheck(runID, action, effect, reason string) {
	l.Log(Event{
		Type:  EventTypePolicyCheck,
		RunID: runID,
		Data: map[string]string{
			"action": action,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogCost(runID string, promptTokens, completionTokens int) {
	l.Log(Event{
		Type:  EventTypeCost,
		RunID: runID,
		Data: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	})
}

func (l *Logger) LogResult(runID string, result any) {
	l.Log(Event{Type: EventTypeResult, RunID: runID, Data: result})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(runID string, prompt any, response string) {
	l.Log(Event{
		Type:  EventTypeLLM,
		RunID: runID,
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
		},
	})
}

// Package logger provides structured logging for alphadata
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	mu           sync.Mutex
)

// contextKey is the type for context keys
type contextKey string

const (
	// DatasetKey is the context key for the dataset being served
	DatasetKey contextKey = "dataset"
	// RunIDKey is the context key for the compute run (backtest, research job)
	RunIDKey contextKey = "run_id"
)

// Config represents logger configuration
type Config struct {
	Level       string   `yaml:"level" json:"level"`
	Development bool     `yaml:"development" json:"development"`
	Encoding    string   `yaml:"encoding" json:"encoding"` // json or console
	OutputPaths []string `yaml:"output_paths" json:"output_paths"`
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Encoding: "json",
	}
}

// Init initializes the global logger. Unlike Get's lazy default it replaces a
// previously installed logger, so the CLI can apply flags after defaults.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

// New creates a new zap logger
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "json"
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return logger, nil
}

// Get returns the global logger
func Get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		logger, err := New(DefaultConfig())
		if err != nil {
			// Fallback to basic logger
			logger, _ = zap.NewProduction()
		}
		globalLogger = logger
	}
	return globalLogger
}

// WithContext returns a logger with context values
func WithContext(ctx context.Context) *zap.Logger {
	logger := Get()

	if dataset, ok := ctx.Value(DatasetKey).(string); ok {
		logger = logger.With(zap.String("dataset", dataset))
	}

	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		logger = logger.With(zap.String("run_id", runID))
	}

	return logger
}

// With creates a child logger with additional fields
func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

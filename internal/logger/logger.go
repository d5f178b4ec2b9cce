package logger

import (
	"log/slog"
	"os"

	"sop-assistant/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration.
// Debug level is enabled by GIN_MODE=debug or DEBUG=true.
func InitLogger(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.GinMode == "debug" || cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.GinMode == "debug",
	}

	Logger = slog.New(slog.NewJSONHandler(os.Stdout, opts)).With("service", cfg.ServiceName)
	Logger.Debug("Structured logging initialized", "level", level.String())
}

// With returns a child logger carrying args, or the default logger before init.
func With(args ...any) *slog.Logger {
	if Logger != nil {
		return Logger.With(args...)
	}
	return slog.Default().With(args...)
}

func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}

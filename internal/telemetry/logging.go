package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel разбирает уровень логирования: DEBUG, INFO, WARN (WARNING), ERROR
// в любом регистре. Неизвестное значение — INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger создаёт логгер, пишущий в w.
//
// format "text" — человекочитаемый вывод для разработки,
// любое другое значение — JSON для production.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetupLogger инициализирует глобальный логгер из LOG_LEVEL и LOG_FORMAT.
//
// Логи пишутся в stderr, чтобы stdout CLI оставался чистым для --json вывода.
func SetupLogger() *slog.Logger {
	logger := NewLogger(os.Stderr, ParseLevel(os.Getenv("LOG_LEVEL")), os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)
	return logger
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithFlow возвращает логгер с добавленным именем flow.
func WithFlow(logger *slog.Logger, flowName string) *slog.Logger {
	return logger.With("flow", flowName)
}

// WithStepID возвращает логгер с добавленным step_id.
func WithStepID(logger *slog.Logger, stepID string) *slog.Logger {
	return logger.With("step_id", stepID)
}

// Discard возвращает логгер, который ничего не пишет.
// Используется в тестах и как значение по умолчанию для необязательных зависимостей.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

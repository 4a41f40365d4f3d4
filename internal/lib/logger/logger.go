package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/linemk/recipe-exchange/internal/lib/logger/handlers/slogpretty"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// ServiceName добавляется ко всем JSON-записям, чтобы их можно было отфильтровать в общем потоке.
const ServiceName = "recipe-exchange"

// SetupLogger пишет в stdout: local - цветной вывод, dev - JSON с debug, остальное - JSON с info.
func SetupLogger(env string) *slog.Logger {
	return New(env, os.Stdout)
}

// New собирает логгер для окружения env с выводом в out.
func New(env string, out io.Writer) *slog.Logger {
	switch env {
	case EnvLocal:
		return newPretty(out)
	case EnvDev:
		return newJSON(out, slog.LevelDebug, env)
	default:
		return newJSON(out, slog.LevelInfo, env)
	}
}

func newJSON(out io.Writer, level slog.Level, env string) *slog.Logger {
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("env", env),
	)
}

func newPretty(out io.Writer) *slog.Logger {
	color.NoColor = false

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}
	return slog.New(opts.NewPrettyHandler(out))
}

// Package logger installs the process-wide slog logger: tint on terminals
// and for console output, JSON otherwise, with payment secrets redacted.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/orris-inc/autopay/internal/shared/config"
)

var (
	Logger   *slog.Logger
	loggerMu sync.Mutex
)

// Init installs the process-wide slog logger. debug enables source
// attribution on every level.
func Init(cfg *config.LoggerConfig, debug bool) error {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))

	writer, err := openOutput(cfg.OutputPath)
	if err != nil {
		return err
	}

	sourceLevels := []slog.Level{slog.LevelWarn, slog.LevelError}
	if debug {
		sourceLevels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}
	}

	var base slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		base = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	} else {
		base = newTintHandler(writer, level)
	}

	install(slog.New(newAppHandler(base, handlerOptions{
		SourceLevels: sourceLevels,
		RedactKeys:   defaultRedactedKeys,
	})))
	return nil
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutput(path string) (io.Writer, error) {
	switch strings.ToLower(path) {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
}

func newTintHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
			}
			return a
		},
	})
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

func install(l *slog.Logger) {
	loggerMu.Lock()
	Logger = l
	loggerMu.Unlock()
	if l != nil {
		slog.SetDefault(l)
	}
}

// Get returns the installed logger, falling back to info-level console
// output when Init was never called.
func Get() *slog.Logger {
	loggerMu.Lock()
	current := Logger
	loggerMu.Unlock()
	if current != nil {
		return current
	}

	fallback := slog.New(newAppHandler(newTintHandler(os.Stdout, slog.LevelInfo), handlerOptions{
		SourceLevels: []slog.Level{slog.LevelWarn, slog.LevelError},
		RedactKeys:   defaultRedactedKeys,
	}))
	install(fallback)
	return fallback
}

// Discard returns an Interface that drops every record.
func Discard() Interface {
	return NewLoggerWithSlog(slog.New(slog.DiscardHandler))
}

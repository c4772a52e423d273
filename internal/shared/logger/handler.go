package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
)

const redactedValue = "[REDACTED]"

// Keys whose values never reach the log output: provider credentials,
// saved card tokens and API secrets.
var defaultRedactedKeys = []string{
	"authorization",
	"secret_key",
	"bot_token",
	"api_token",
	"admin_token",
	"payment_method_id",
	"password",
}

// handlerOptions configures the wrapping handler installed by Init.
type handlerOptions struct {
	// SourceLevels lists the levels that carry a source attribute.
	SourceLevels []slog.Level
	// RedactKeys are matched case-insensitively against attribute keys,
	// including keys nested in groups.
	RedactKeys []string
}

// appHandler adds source locations for selected levels and masks
// sensitive attribute values before delegating.
type appHandler struct {
	handler      slog.Handler
	sourceLevels map[slog.Level]bool
	redactKeys   map[string]bool
}

func newAppHandler(handler slog.Handler, opts handlerOptions) slog.Handler {
	h := &appHandler{
		handler:      handler,
		sourceLevels: make(map[slog.Level]bool, len(opts.SourceLevels)),
		redactKeys:   make(map[string]bool, len(opts.RedactKeys)),
	}
	for _, level := range opts.SourceLevels {
		h.sourceLevels[level] = true
	}
	for _, key := range opts.RedactKeys {
		h.redactKeys[strings.ToLower(key)] = true
	}
	return h
}

func (h *appHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *appHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})

	if h.sourceLevels[r.Level] && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		out.AddAttrs(slog.Any(slog.SourceKey, &slog.Source{
			Function: f.Function,
			File:     f.File,
			Line:     f.Line,
		}))
	}

	return h.handler.Handle(ctx, out)
}

func (h *appHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.redact(a)
	}
	return &appHandler{
		handler:      h.handler.WithAttrs(masked),
		sourceLevels: h.sourceLevels,
		redactKeys:   h.redactKeys,
	}
}

func (h *appHandler) WithGroup(name string) slog.Handler {
	return &appHandler{
		handler:      h.handler.WithGroup(name),
		sourceLevels: h.sourceLevels,
		redactKeys:   h.redactKeys,
	}
}

func (h *appHandler) redact(a slog.Attr) slog.Attr {
	if h.redactKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redactedValue)
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		masked := make([]any, len(group))
		for i, ga := range group {
			masked[i] = h.redact(ga)
		}
		return slog.Group(a.Key, masked...)
	}
	return a
}

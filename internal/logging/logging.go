// Package logging builds the structured JSON logger used by every command and
// scrubs credentials from anything that might echo them.
package logging

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"time"
)

// CollectedAt formats t the way every discovery log record stamps it.
func CollectedAt(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}

// Names must start a word, so "turkey: recipes" is left alone while
// "access_token=..." is still caught.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key)([=:]\s*)[\w-]+`),
	regexp.MustCompile(`(?i)((?:^|[^a-z0-9])key)([=:]\s*)[\w-]+`),
	regexp.MustCompile(`(?i)((?:^|[^a-z0-9])token)([=:]\s*)[\w-]+`),
	regexp.MustCompile(`(?i)((?:^|[^a-z0-9])cx)([=:]\s*)[\w-]+`),
}

// plainKeys hold user supplied search text and are never rewritten.
var plainKeys = map[string]bool{"keyword": true}

// Redact masks key, token, cx and api_key values in msg.
func Redact(msg string) string {
	for _, re := range secretPatterns {
		msg = re.ReplaceAllString(msg, "${1}${2}***")
	}
	return msg
}

// RedactErr returns the redacted error text, truncated to 120 characters.
func RedactErr(err error) string {
	if err == nil {
		return ""
	}
	msg := Redact(err.Error())
	if len(msg) > 120 {
		msg = msg[:120]
	}
	return msg
}

// New returns a JSON logger writing to w. Verbose lowers the level to DEBUG.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				a.Key = "timestamp"
				a.Value = slog.StringValue(CollectedAt(a.Value.Time()))
			}
			if len(groups) == 0 && a.Key == slog.MessageKey {
				a.Key = "message"
			}
			return a
		},
	})
	return slog.New(&redactingHandler{inner: h})
}

// redactingHandler rewrites error and string attributes through Redact before
// they reach the encoder.
type redactingHandler struct {
	inner slog.Handler
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cleaned := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		cleaned[i] = redactAttr(a)
	}
	return &redactingHandler{inner: h.inner.WithAttrs(cleaned)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	if plainKeys[a.Key] {
		return slog.Attr{Key: a.Key, Value: v}
	}
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, Redact(err.Error()))
		}
	case slog.KindGroup:
		group := v.Group()
		cleaned := make([]any, len(group))
		for i, ga := range group {
			cleaned[i] = redactAttr(ga)
		}
		return slog.Group(a.Key, cleaned...)
	}
	return slog.Attr{Key: a.Key, Value: v}
}

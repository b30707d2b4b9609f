// Package debug provides category-gated debug logging.
//
// Categories select WHAT is logged (ANREICHER_DEBUG or logging.debug, a
// comma-separated list such as "gateway,enrich"; "all" enables every
// category). The slog level selects HOW MUCH (ANREICHER_LOG_LEVEL or
// logging.level); TRACE adds full prompts and backend bodies.
//
//	debug.Log("enrich", "scopes extracted", "scopes", scopes)
//	if debug.TraceIsEnabled("gateway") { debug.Raw("gateway", string(body)) }
//
// Categories in use: gateway, pipeline, enrich, engine, directory, actions,
// auth, transport, config.
package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// enabled holds the active category set; replaced wholesale by Init.
var enabled atomic.Pointer[map[string]bool]

// rawOut receives Raw output.
var rawOut io.Writer = os.Stderr

func init() {
	setCategories(os.Getenv("ANREICHER_DEBUG"))
}

// Init selects the debug categories and installs the default slog handler
// writing to stderr. ANREICHER_DEBUG and ANREICHER_LOG_LEVEL take
// precedence over the configured values.
func Init(configCategories, configLevel, format string) {
	slog.SetDefault(NewLogger(os.Stderr, configCategories, configLevel, format))
}

// NewLogger applies the category selection like Init and returns a logger
// writing to w in format ("json" or text) at the resolved level.
func NewLogger(w io.Writer, configCategories, configLevel, format string) *slog.Logger {
	setCategories(firstNonEmpty(os.Getenv("ANREICHER_DEBUG"), configCategories))

	opts := &slog.HandlerOptions{
		Level:       ParseLevel(firstNonEmpty(os.Getenv("ANREICHER_LOG_LEVEL"), configLevel)),
		ReplaceAttr: renameTrace,
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// renameTrace prints LevelTrace as "TRACE" instead of "DEBUG-4".
func renameTrace(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// Enabled reports whether category is selected.
func Enabled(category string) bool {
	m := *enabled.Load()
	return m["all"] || m[category]
}

// Log emits a DEBUG record tagged with category when it is selected.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a TRACE record tagged with category when it is selected.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether category is selected and the default
// logger admits TRACE records.
func TraceIsEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// Raw writes text unformatted, for copy-pasteable prompts and bodies.
// Only emitted at TRACE for a selected category.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintf(rawOut, "--- %s ---\n%s\n", category, text)
}

// ParseLevel converts a level name to a slog.Level; unknown names mean INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
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

// Categories returns the selected categories, sorted.
func Categories() []string {
	m := *enabled.Load()
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

func setCategories(s string) {
	m := parseCategories(s)
	enabled.Store(&m)
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			m[cat] = true
		}
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

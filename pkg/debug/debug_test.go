package debug

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

// withCategories selects s for the duration of the test.
func withCategories(t *testing.T, s string) {
	t.Helper()
	prev := enabled.Load()
	setCategories(s)
	t.Cleanup(func() { enabled.Store(prev) })
}

// withDefaultLogger installs l as the default logger for the test.
func withDefaultLogger(t *testing.T, l *slog.Logger) {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(l)
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"gateway", []string{"gateway"}},
		{" Gateway , ENRICH ", []string{"enrich", "gateway"}},
		{"gateway,,enrich,gateway", []string{"enrich", "gateway"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			withCategories(t, tt.input)
			if got := Categories(); !slices.Equal(got, tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Errorf("Categories() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	withCategories(t, "gateway,enrich")

	if !Enabled("gateway") || !Enabled("enrich") {
		t.Error("selected categories should be enabled")
	}
	if Enabled("auth") {
		t.Error("auth was not selected")
	}

	withCategories(t, "all")
	if !Enabled("anything") {
		t.Error("all should enable every category")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"TRACE":   LevelTrace,
		"trace":   LevelTrace,
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is a ..."},
		{"Grüße aus München", 5, "Grüße..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestLogRespectsCategory(t *testing.T) {
	var buf bytes.Buffer
	withDefaultLogger(t, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelTrace})))
	withCategories(t, "enrich")

	Log("gateway", "hidden")
	Log("enrich", "shown", "enricher", "normalizer")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("unselected category logged: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "debug=enrich") {
		t.Errorf("selected category missing: %s", out)
	}
}

func TestRawOnlyAtTrace(t *testing.T) {
	var raw bytes.Buffer
	prevOut := rawOut
	rawOut = &raw
	t.Cleanup(func() { rawOut = prevOut })
	withCategories(t, "gateway")

	withDefaultLogger(t, slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})))
	Raw("gateway", "at debug")
	if raw.Len() != 0 {
		t.Errorf("Raw wrote below TRACE: %q", raw.String())
	}

	withDefaultLogger(t, slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: LevelTrace})))
	Raw("gateway", "POST /api/generate")
	if !strings.Contains(raw.String(), "POST /api/generate") {
		t.Errorf("Raw output = %q", raw.String())
	}
}

func TestNewLoggerEnvOverridesConfig(t *testing.T) {
	withCategories(t, "")
	t.Setenv("ANREICHER_DEBUG", "pipeline")
	t.Setenv("ANREICHER_LOG_LEVEL", "TRACE")

	var buf bytes.Buffer
	l := NewLogger(&buf, "gateway", "ERROR", "json")

	if !Enabled("pipeline") || Enabled("gateway") {
		t.Errorf("categories = %v, want env selection", Categories())
	}
	if !l.Enabled(context.Background(), LevelTrace) {
		t.Fatal("TRACE from env should be active")
	}

	l.Log(context.Background(), LevelTrace, "deep")
	if !strings.Contains(buf.String(), `"level":"TRACE"`) {
		t.Errorf("trace level not renamed: %s", buf.String())
	}
}

package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel}, // default
		{"", zerolog.InfoLevel},        // default
	}
	for _, c := range cases {
		got := parseLevel(c.input)
		if got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestComponent_TagsOutput(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	l := base.With().Str("component", "indexer").Logger()

	l.Info().Msg("hello")
	out := buf.String()
	if !strings.Contains(out, `"component":"indexer"`) {
		t.Errorf("expected component field in output, got: %s", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected message in output, got: %s", out)
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	Setup("warn")
	defer Setup("info")

	var buf bytes.Buffer
	l := zerolog.New(&buf)

	l.Info().Msg("should be hidden")
	if buf.Len() > 0 {
		t.Errorf("info suppressed at warn level, got: %s", buf.String())
	}

	l.Warn().Msg("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("warn should appear at warn level, got: %s", buf.String())
	}
}

func TestSetLevel_ChangesFilter(t *testing.T) {
	Setup("error")
	defer Setup("info")

	var buf bytes.Buffer
	l := zerolog.New(&buf)

	l.Info().Msg("hidden")
	if buf.Len() > 0 {
		t.Errorf("info suppressed at error level, got: %s", buf.String())
	}

	SetLevel("debug")
	l.Info().Msg("visible now")
	if !strings.Contains(buf.String(), "visible now") {
		t.Errorf("info should appear after SetLevel(debug), got: %s", buf.String())
	}
}

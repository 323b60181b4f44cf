package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"":        logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug")

	Component(l, "runner").Info("attached")

	out := buf.String()
	if !strings.Contains(out, "component=runner") {
		t.Errorf("expected component field in output, got %q", out)
	}
	if !strings.Contains(out, "attached") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")

	l.Info("quiet")
	l.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info line should have been filtered, got %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("warn line missing, got %q", out)
	}
}

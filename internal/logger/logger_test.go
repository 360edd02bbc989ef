package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriterEmitsJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("terminal", "till-1").Msg("checkout")

	out := buf.String()
	if !strings.Contains(out, `"terminal":"till-1"`) || !strings.Contains(out, "checkout") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := ParseLevel("nonsense"); got != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", got)
	}
	if got := ParseLevel("DEBUG"); got != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", got)
	}
}

func TestFromContextRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Warn().Msg("stored")

	if buf.Len() == 0 {
		t.Fatalf("expected output from context logger")
	}
}

func TestFromContextWithoutLoggerIsDisabled(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() != zerolog.Disabled {
		t.Fatalf("expected disabled logger, got %s", log.GetLevel())
	}
}

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestTextLoggerLevelsAndWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, slog.LevelInfo)
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.Info(ctx, "saving datum", "type", "item")
	log.With("id", "abc").Warn(ctx, "conflict")
	log.Error(ctx, "failed", "error", "boom")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered at info level")
	}
	for _, want := range []string{"saving datum", "type=item", "conflict", "id=abc", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestDiscardDropsRecords(t *testing.T) {
	log := Discard()
	// Must not panic and must accept all levels.
	ctx := context.Background()
	log.Debug(ctx, "a")
	log.Info(ctx, "b")
	log.Warn(ctx, "c")
	log.Error(ctx, "d")
	log.With("k", "v").Info(ctx, "e")
}

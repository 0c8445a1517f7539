package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNopHandlerDisabled(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(nopHandler); !ok {
		t.Error("WithAttrs did not return a nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup did not return a nopHandler")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) != Nop() {
		t.Error("OrNop(nil) did not return the silent logger")
	}
	l := slog.Default()
	if OrNop(l) != l {
		t.Error("OrNop(l) did not return l")
	}
}

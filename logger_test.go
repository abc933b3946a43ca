package raytrace

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/raytrace/backend/software"
	"github.com/gogpu/raytrace/render"
)

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs(nil).(nopHandler); !ok {
		t.Error("WithAttrs() did not return nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup() did not return nopHandler")
	}
}

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("default logger should be disabled")
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	dev := software.New()
	defer dev.Close()
	r, err := render.NewOffscreen(dev, render.WithSize(4, 4))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	rt := New(r)
	if err := rt.Init(); err != nil {
		t.Fatal(err)
	}
	if err := rt.Run(); err != nil {
		t.Fatal(err)
	}
	rt.Close()

	out := buf.String()
	for _, want := range []string{"raytrace: initialized", "raytrace: scene buffers rebuilt", "software: dispatch", "raytrace: closed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}

	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should restore the silent logger")
	}
}

type recordingSetter struct{ got *slog.Logger }

func (r *recordingSetter) SetLogger(l *slog.Logger) { r.got = l }

func TestPropagateLogger(t *testing.T) {
	l := slog.New(slog.DiscardHandler)
	var rs recordingSetter
	propagateLogger(&rs, l)
	if rs.got != l {
		t.Error("propagateLogger did not call SetLogger")
	}
	propagateLogger(struct{}{}, l) // no SetLogger: ignored
}

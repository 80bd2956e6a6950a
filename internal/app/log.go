package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// igaHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<runTag>\t<message>\t<key=value ...>
type igaHandler struct {
	w      io.Writer
	runTag string
	attrs  []slog.Attr
}

func (h *igaHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *igaHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	level := r.Level.String()

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, level, h.runTag, r.Message)
	if err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *igaHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &igaHandler{
		w:      h.w,
		runTag: h.runTag,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *igaHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to both logDir/iga.log and
// stderr. It returns the logger, the open log file (for cleanup), and any
// error.
func newLogger(logDir string, runTag string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "iga.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, os.Stderr)
	handler := &igaHandler{w: w, runTag: runTag}
	return slog.New(handler), f, nil
}

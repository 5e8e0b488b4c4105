// Package alog provides the structured logger used across every node and
// HTTP surface in the engine. It wraps log/slog and fans out to multiple
// handlers the way the teacher's internal/logger package does with
// slog-multi, but trims the file-rotation and quiet-mode options that
// belong to the out-of-core CLI.
package alog

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the interface every node holds zero or more of (spec §3: "Node
// ... Reference to 0+ loggers").
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// New builds a Logger that writes to every given writer as JSON, fanned out
// with slog-multi. With no writers it defaults to stderr.
func New(level slog.Level, writers ...io.Writer) Logger {
	if len(writers) == 0 {
		writers = []io.Writer{os.Stderr}
	}
	handlers := make([]slog.Handler, 0, len(writers))
	for _, w := range writers {
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	fanout := slogmulti.Fanout(handlers...)
	return &slogLogger{l: slog.New(fanout)}
}

// NewNop returns a Logger that discards everything, for nodes built without
// an explicit logger.
func NewNop() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

// LogError logs err at Error level, tagged with action, if non-nil (no stack
// trace is attached), mirroring
// the teacher's utils.LogErr helper used throughout agent.Agent.run.
func LogError(l Logger, action string, err error) {
	if err == nil {
		return
	}
	l.Error("action failed", "action", action, "error", err)
}

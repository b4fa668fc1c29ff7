// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps a slog.Logger so packages can share a single logging setup.
type Logger struct {
	*slog.Logger
}

// New returns a Logger writing text records at the given level to stderr.
func New(level slog.Level) *Logger {
	return NewLogger(level, os.Stderr)
}

// NewLogger returns a Logger writing text records at the given level to the provided
// writers. Without a writer, records go to stderr.
func NewLogger(level slog.Level, out ...io.Writer) *Logger {
	var output io.Writer = os.Stderr
	switch len(out) {
	case 0:
	case 1:
		output = out[0]
	default:
		output = io.MultiWriter(out...)
	}
	return &Logger{slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))}
}

// Err returns a slog attribute for the given error.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}

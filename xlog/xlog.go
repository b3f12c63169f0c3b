// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package xlog is a thin structured-logging façade over zerolog, shared by
// the stream, storage, and device packages. The core never reaches for the
// global zerolog logger directly; each of those packages builds its
// sub-logger with For(nil, name), which derives it from Default().
package xlog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultOnce   sync.Once
	defaultLogger zerolog.Logger
)

// Default returns the process-wide fallback logger, a console writer on
// stderr at info level. It is built lazily so packages that never log
// never pay for it.
func Default() *zerolog.Logger {
	defaultOnce.Do(func() {
		defaultLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.InfoLevel).
			With().Timestamp().Logger()
	})
	return &defaultLogger
}

// For returns a sub-logger tagged with component=name, derived from base.
// If base is nil, Default() is used.
func For(base *zerolog.Logger, name string) zerolog.Logger {
	if base == nil {
		base = Default()
	}
	return base.With().Str("component", name).Logger()
}

// SetLevel adjusts the default logger's minimum level. Intended for CLI
// flags (e.g. -v), not for library callers who should instead construct
// their own *zerolog.Logger and pass it in explicitly.
func SetLevel(level zerolog.Level) {
	Default()
	defaultLogger = defaultLogger.Level(level)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls level and output format.
type Options struct {
	Environment string
	// Level overrides the environment default (debug in development, info otherwise).
	Level string
	// Format is "console" or "json". Empty picks console in development.
	Format string
}

// Setup configures zerolog for the process. The extra writers, such as the
// in-memory log buffer, always receive JSON.
func Setup(opts Options, extra ...io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stdout
	if useConsole(opts) {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	writers := []io.Writer{out}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, w)
		}
	}
	if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(out).With().Timestamp().Logger().Level(level(opts))
	log.Logger = logger
	return logger
}

func useConsole(opts Options) bool {
	switch strings.ToLower(opts.Format) {
	case "json":
		return false
	case "console":
		return true
	}
	return opts.Environment == "development"
}

func level(opts Options) zerolog.Level {
	if opts.Level != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil && lvl != zerolog.NoLevel {
			return lvl
		}
	}
	if opts.Environment == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// Package logging builds the process zerolog logger from config.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"imaged/internal/common/fsutil"
	"imaged/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger writing to stderr in the configured format and, when
// cfg.File is set, also to a size-rotated file. Close the returned Closer on
// exit to flush the file sink.
func New(cfg config.Log) (zerolog.Logger, io.Closer, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.Log, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = stderr
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		path, err := fsutil.ExpandHome(cfg.File)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		// the file always gets JSON lines
		out = zerolog.MultiLevelWriter(out, lj)
		closer = lj
	}

	l := zerolog.New(out).Level(level).With().Timestamp().Str("service", "imaged").Logger()
	return l, closer, nil
}

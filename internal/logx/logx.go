// Package logx builds the console loggers used by the command-line tools.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options configures NewLogger.
type Options struct {
	Out     io.Writer // default os.Stderr
	Level   string    // zerolog level name, default "info"
	NoColor bool
}

// NewLogger returns a zerolog logger writing human-readable lines to
// opts.Out. Command output goes to stdout, so logs default to stderr.
func NewLogger(opts Options) (zerolog.Logger, error) {
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}

	output := zerolog.ConsoleWriter{
		Out:        opts.Out,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	zerolog.CallerMarshalFunc = shortCaller
	return zerolog.New(output).Level(level).With().Timestamp().Caller().Logger(), nil
}

// shortCaller renders file:line without the directory, padded for alignment.
func shortCaller(pc uintptr, file string, line int) string {
	return fmt.Sprintf("%-28s", fmt.Sprintf("%s:%d", filepath.Base(file), line))
}

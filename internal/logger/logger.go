package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Level is one of zerolog's level strings
// (debug, info, warn, error); unknown values fall back to info. Pretty
// enables the human-readable console writer for interactive runs, otherwise
// output is JSON lines.
func New(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// NewWithFile builds the process logger and duplicates output into a dated
// log file under dir, named after the symbol. The caller owns the returned
// file handle.
func NewWithFile(level string, pretty bool, dir, symbol string) (zerolog.Logger, *os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("logger: create log directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.log", symbol, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("logger: open log file: %w", err)
	}

	lvl, perr := zerolog.ParseLevel(strings.ToLower(level))
	if perr != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var console io.Writer = os.Stderr
	if pretty {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	log := zerolog.New(zerolog.MultiLevelWriter(console, file)).
		Level(lvl).With().Timestamp().Logger()
	return log, file, nil
}

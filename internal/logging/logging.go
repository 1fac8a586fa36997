// Package logging builds the zerolog logger shared by the CLI, the service and
// the repositories.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Formats accepted by New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New returns a logger writing to w at level. An empty level means info and an
// empty format means console. A nil w writes to stderr.
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
	case "", FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isTerminal(w)}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

package internal

import (
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
)

// NewLogger returns a JSON logger writing records at or above level.
func NewLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// Package logging builds the JSON-lines slog logger shared by the server, the
// HTTP middleware and the CLI. Every line carries a "ts" field rendered in the
// configured time zone.
package logging

import (
	"io"
	"log/slog"
	"time"
)

// TimeKey replaces slog's default "time" key.
const TimeKey = "ts"

// New returns a JSON logger writing to w. A nil loc means UTC.
func New(w io.Writer, loc *time.Location, level slog.Leveler) *slog.Logger {
	if loc == nil {
		loc = time.UTC
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String(TimeKey, a.Value.Time().In(loc).Format(time.RFC3339Nano))
			}
			return a
		},
	})
	return slog.New(h)
}

// Location resolves an IANA zone name, falling back to UTC.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

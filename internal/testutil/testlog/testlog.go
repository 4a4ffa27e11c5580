// Package testlog routes component logs into the test log.
package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"devlink/internal/logging"
)

type writer struct{ t *testing.T }

func (w writer) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Start returns a debug logger bound to t.Log.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	l := logging.New(logging.Options{Profile: logging.ProfileTest, Out: writer{t: t}})
	l.Debug().Str("test", t.Name()).Msg("start")
	return l
}

// Package sessionlog formats the session-log file name the terminal
// collaborator is specified to use (spec §6, "Persistent state": the
// engine itself persists nothing, but a session-log file is written by
// the terminal collaborator named "session-YYYYMMDD-HHMMSS.log").
package sessionlog

import (
	"time"

	"github.com/lestrrat-go/strftime"
)

const pattern = "session-%Y%m%d-%H%M%S.log"

var formatter = strftime.MustNew(pattern)

// Name renders the session-log file name for the given start time.
func Name(start time.Time) string {
	return formatter.FormatString(start)
}

package transform

import (
	"io"
	"log"
	"os"
)

var (
	opsLogger  = newLogger(os.Stderr)
	diagLogger *log.Logger
)

// SetLogWriters configures the logging streams for the transform package.
// ops carries failures a caller should act on (not-ready calls, joint store
// and file errors); diag carries retry and broadcast chatter. Pass nil for
// any writer to disable that stream.
func SetLogWriters(ops, diag io.Writer) {
	opsLogger = newLogger(ops)
	diagLogger = newLogger(diag)
}

func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "[transform] ", log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream.
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream.
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

package pipeline

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
)

// stderrTail is the number of trailing stderr bytes kept per stage.
const stderrTail = 4 << 10

// ToolError reports a stage that failed to start or exited with a non-zero
// status.
type ToolError struct {
	// Chain is the name of the plan.
	Chain string
	// Stage is the name of the failed stage, and Index its position in
	// the plan.
	Stage string
	Index int
	// ExitCode is the exit status of the stage, or -1 if it did not start
	// or was killed by a signal.
	ExitCode int
	// Stderr holds the tail of the stage's standard error.
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pipeline %s: stage %d (%s)", e.Chain, e.Index, e.Stage)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
	} else {
		fmt.Fprintf(&b, " failed")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", s)
	}
	return b.String()
}

func (e *ToolError) Unwrap() error { return e.Err }

// isBrokenPipe reports whether err means that the reader of a pipe went
// away. A stage that exits before reading all of its input is not an error
// of the writer.
func isBrokenPipe(err error) bool {
	return err != nil && (errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe))
}

// tailWriter keeps the last stderrTail bytes written to it.
type tailWriter struct {
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > stderrTail {
		p = p[len(p)-stderrTail:]
	}
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - stderrTail; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
	}
	return n, nil
}

func (w *tailWriter) String() string { return string(w.buf) }

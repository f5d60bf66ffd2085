package gemmap

import "fmt"

// FormatError is returned when a line or summary does not follow the GEM
// mapping grammar. Line holds the offending raw line.
type FormatError struct {
	Line   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("gemmap: %s: %q", e.Reason, e.Line)
}

// LengthMismatchError is returned when a read cannot be exported because
// its sequence is empty or its quality string has a different length and
// quality trimming is disabled.
type LengthMismatchError struct {
	ID, Seq, Qual string
}

func (e *LengthMismatchError) Error() string {
	if len(e.Seq) == 0 {
		return fmt.Sprintf("gemmap: empty sequence for %s", e.ID)
	}
	return fmt.Sprintf("gemmap: different sequence and quality sizes for %s: %d != %d (%s, %s)",
		e.ID, len(e.Seq), len(e.Qual), e.Seq, e.Qual)
}

package gemmap

import (
	"bufio"
	"io"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// maxLineSize bounds the length of a single mapping line. Reads with many
// decoded matches produce very long lines.
const maxLineSize = 256 << 20

// Scanner reads mapping lines from a reader. Scanners are not threadsafe.
type Scanner struct {
	b    *bufio.Scanner
	read *Read
	err  error
	n    int
}

// NewScanner creates a scanner over mapping data in r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	return &Scanner{b: b}
}

// Scan decodes the next non-empty line. It returns false at the end of
// the input or on error; Err tells the two apart.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.b.Scan() {
		s.n++
		line := s.b.Text()
		if len(line) == 0 {
			continue
		}
		r := &Read{}
		if err := DecodeInto(r, line); err != nil {
			s.err = err
			return false
		}
		s.read = r
		return true
	}
	if err := s.b.Err(); err != nil {
		s.err = errors.Wrapf(err, "gemmap: reading line %d", s.n+1)
	}
	return false
}

// Read returns the read decoded by the last successful Scan. Every Scan
// allocates a new Read, so the result may be retained.
func (s *Scanner) Read() *Read { return s.read }

// Err returns the first error encountered while scanning.
func (s *Scanner) Err() error { return s.err }

// Writer writes reads as mapping lines.
type Writer struct {
	w *tsv.Writer
	// NoMaxMappings causes summaries equal to the collapsed "too many"
	// count to be written as "0".
	NoMaxMappings bool
}

// NewWriter creates a buffered writer. Flush must be called when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: tsv.NewWriter(w)}
}

// Write writes r as one line.
func (w *Writer) Write(r *Read) error {
	summary := r.Summary
	if w.NoMaxMappings && summary == maxMappingsString {
		summary = "0"
	}
	w.w.WriteString(r.ID)
	w.w.WriteString(r.Seq)
	if r.Qual != "" {
		w.w.WriteString(r.Qual)
	}
	w.w.WriteString(summary)
	w.w.WriteString(r.Mappings)
	return w.w.EndLine()
}

// WriteLine writes a raw mapping line.
func (w *Writer) WriteLine(line string) error {
	w.w.WriteString(line)
	return w.w.EndLine()
}

// Flush flushes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

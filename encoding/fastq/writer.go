package fastq

import "io"

var newline = []byte{'\n'}

// Writer is a FASTQ or FASTA file writer.
type Writer struct {
	w      io.Writer
	format Format
	err    error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewFormatWriter constructs a writer emitting reads in the given format.
// In FASTA format only the ID and Seq fields are written.
func NewFormatWriter(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// Write writes the read r in the writer's format.
// An error is returned if the write failed.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	if w.format == FASTQ {
		w.writeln(r.Unk)
		w.writeln(r.Qual)
	}
	return w.err
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}

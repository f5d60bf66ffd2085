package fastq

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ or FASTA file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

// maxLineSize is the longest line the scanner accepts. Long-read FASTA
// entries are often written on a single line.
const maxLineSize = 64 << 20

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string. FASTA entries leave Unk and Qual
// empty. ID holds the complete header line including the leading '@' or
// '>'.
type Read struct {
	ID, Seq, Unk, Qual string
}

// Name returns the read name: the ID line without its marker character.
func (r *Read) Name() string {
	if len(r.ID) > 0 && (r.ID[0] == '@' || r.ID[0] == '>') {
		return r.ID[1:]
	}
	return r.ID
}

// Format returns FASTA for reads with no line 3, FASTQ otherwise.
func (r *Read) Format() Format {
	if r.Unk == "" {
		return FASTA
	}
	return FASTQ
}

// Trim cuts the read and quality lengths to at most n.
func (r *Read) Trim(n int) {
	if len(r.Seq) > n {
		r.Seq = r.Seq[:n]
	}
	if len(r.Qual) > n {
		r.Qual = r.Qual[:n]
	}
}

// Format enumerates the textual sequence formats.
type Format int

const (
	// FASTQ is the four line format with qualities.
	FASTQ Format = iota
	// FASTA is the header plus sequence format without qualities.
	FASTA
)

// String implements fmt.Stringer.
func (f Format) String() string {
	if f == FASTA {
		return "fasta"
	}
	return "fastq"
}

var errEOF = errors.New("eof")

// Scanner provides a convenient interface for reading FASTQ and FASTA
// read data. The Scan method returns the next read, returning a boolean
// indicating whether the read succeeded. Scanners are not threadsafe.
//
// The record format is chosen per record from the marker of the ID line:
// '@' starts a four-line FASTQ record, '>' starts a FASTA record whose
// sequence may span several lines. Scanner requires that FASTQ line 3
// begins with "+", but does not perform further validation (e.g.,
// seq/qual being of equal length, containing only data in range, etc.)
type Scanner struct {
	b      *bufio.Scanner
	err    error
	fields Field
	// pending holds a FASTA header line read while collecting the
	// sequence of the previous entry.
	pending    []byte
	hasPending bool
}

// Field enumerates FASTQ fields. It is used to specify fields to read in
// NewScanner.
type Field uint

const (
	// ID causes the Read.ID field to be filled
	ID Field = 1 << iota
	// Seq causes the Read.Seq field to be filled
	Seq
	// Unk causes the Read.Unk field to be filled
	Unk
	// Qual causes the Read.Unk field to be filled
	Qual
	// All equals ID|Seq|Unk|Qual.
	All = ID | Seq | Unk | Qual
)

// NewScanner constructs a new Scanner that reads raw FASTQ or FASTA data
// from the provided reader. Fields is a bitset of the fields to read. A
// typical value would be All or ID|Seq|Qual.
func NewScanner(r io.Reader, fields Field) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(nil, maxLineSize)
	return &Scanner{b: b, fields: fields}
}

// Scan the next read into the provided read. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	var id []byte
	if f.hasPending {
		id, f.hasPending = f.pending, false
	} else {
		for {
			if !f.b.Scan() {
				if f.err = f.b.Err(); f.err == nil {
					f.err = errEOF
				}
				return false
			}
			if id = f.b.Bytes(); len(id) > 0 {
				break
			}
		}
	}
	switch id[0] {
	case '@':
		return f.scanFASTQ(id, read)
	case '>':
		return f.scanFASTA(id, read)
	}
	f.err = ErrInvalid
	return false
}

func (f *Scanner) scanFASTQ(id []byte, read *Read) bool {
	if f.fields&ID != 0 {
		read.ID = string(id)
	}
	if !f.scan() {
		return false
	}
	if f.fields&Seq != 0 {
		read.Seq = f.b.Text()
	}
	if !f.scan() {
		return false
	}
	unk := f.b.Bytes()
	if len(unk) == 0 || unk[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	if f.fields&Unk != 0 {
		read.Unk = string(unk)
	}
	if !f.scan() {
		return false
	}
	if f.fields&Qual != 0 {
		read.Qual = f.b.Text()
	}
	return true
}

func (f *Scanner) scanFASTA(id []byte, read *Read) bool {
	if f.fields&ID != 0 {
		read.ID = string(id)
	}
	read.Unk, read.Qual = "", ""
	var seq []byte
	for f.b.Scan() {
		line := f.b.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' || line[0] == '@' {
			f.pending = append(f.pending[:0], line...)
			f.hasPending = true
			break
		}
		seq = append(seq, line...)
	}
	if err := f.b.Err(); err != nil {
		f.err = err
		return false
	}
	if len(seq) == 0 {
		f.err = ErrShort
		return false
	}
	if f.fields&Seq != 0 {
		read.Seq = string(seq)
	}
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

package stream

import (
	"fmt"
	"io"
	"io/ioutil"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gemtools/encoding/fastq"
	"github.com/grailbio/gemtools/encoding/gemmap"
	"github.com/klauspost/compress/gzip"
	"v.io/x/lib/vlog"
)

// Type is the declared record type of a stream.
type Type int

const (
	// Unknown is a sentinel.
	Unknown Type = iota
	// Sequence streams hold FASTA or FASTQ reads without mappings.
	Sequence
	// Map streams hold GEM mapping lines.
	Map
	// SAM streams are passed through undecoded.
	SAM
	// BAM streams are passed through undecoded.
	BAM
)

func (t Type) String() string {
	switch t {
	case Sequence:
		return "sequence"
	case Map:
		return "map"
	case SAM:
		return "sam"
	case BAM:
		return "bam"
	}
	return "unknown"
}

// ParseType parses a type name such as "map" or "fastq". On error, it
// returns Unknown.
func ParseType(name string) Type {
	switch strings.ToLower(name) {
	case "map":
		return Map
	case "fastq", "fasta", "fq", "fa", "sequence":
		return Sequence
	case "sam":
		return SAM
	case "bam":
		return BAM
	}
	return Unknown
}

// GuessType returns the stream type implied by the path suffix, ignoring
// a trailing compression suffix.
func GuessType(path string) Type {
	path = strings.TrimSuffix(strings.TrimSuffix(path, ".gz"), ".sz")
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return Unknown
	}
	return ParseType(path[i+1:])
}

// Info describes the source of an iterator.
type Info struct {
	Type Type
	// Quality is the quality encoding tag of the reads, e.g. "offset-33".
	// Empty if unknown.
	Quality string
	// Path is the backing file, or "" for streams not backed by a file.
	Path string
}

// Opts configures a Stream.
type Opts struct {
	// Type is the declared record type. If Unknown, Open guesses the type
	// from the path and the other constructors assume Map.
	Type Type
	// Quality is the quality encoding tag passed on to consumers.
	Quality string
	// RemoveOnClose causes the backing file to be removed once the
	// stream is exhausted or closed. It is used for intermediate
	// pipeline artifacts.
	RemoveOnClose bool
}

// Iterator is a single pass sequence of reads. Thread compatible.
type Iterator interface {
	// Scan advances to the next read. It returns false at the end of the
	// stream or on error.
	Scan() bool
	// Record returns the read the last successful Scan advanced to.
	Record() *gemmap.Read
	// Err returns the error encountered while iterating, if any.
	Err() error
	// Close releases the iterator. It must be called exactly once and
	// returns the value of Err.
	Close() error
	// Clone returns an independent iterator over the same source,
	// starting from the beginning. Iterators over byte streams and
	// processes return a *NotCloneableError.
	Clone() (Iterator, error)
	// Info describes the iterator source.
	Info() Info
}

// RawSource is implemented by iterators that can expose their undecoded
// bytes.
type RawSource interface {
	// Raw returns the undecoded, decompressed bytes of the stream. After
	// Raw is called, Scan must not be used.
	Raw() (io.Reader, error)
}

// Process is a running process whose standard output backs a stream.
type Process interface {
	// Wait waits for the process to exit and returns an error for a
	// non-zero exit status.
	Wait() error
	// Terminate kills the process and its children.
	Terminate()
}

// NotCloneableError is returned by Clone for iterators whose source cannot
// be replayed.
type NotCloneableError struct {
	Source string
}

func (e *NotCloneableError) Error() string {
	return fmt.Sprintf("stream: %s cannot be cloned", e.Source)
}

// Stream is an Iterator over a file, a byte stream, or the output of a
// process.
type Stream struct {
	info Info
	opts Opts
	proc Process
	// kind names the source for NotCloneableError.
	kind string

	// src is the innermost reader (file or pipe); in is the decompressed
	// reader decoders read from.
	src     io.Reader
	in      io.Reader
	closers []func() error

	mapScan *gemmap.Scanner
	seqScan *fastq.Scanner
	rec     *gemmap.Read
	err     error
	done    bool

	rawUsed  bool
	closed   bool
	closeErr error
	cleanup  sync.Once
}

// Open opens a file backed stream. Files ending in .gz or .sz are
// decompressed.
func Open(path string, optList ...Opts) (*Stream, error) {
	opts := mergeOpts(optList)
	if opts.Type == Unknown {
		opts.Type = GuessType(path)
	}
	if opts.Type == Unknown {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("stream: cannot determine the type of %s", path))
	}
	ctx := vcontext.Background()
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "stream: open", path)
	}
	s := &Stream{
		info: Info{Type: opts.Type, Quality: opts.Quality, Path: path},
		opts: opts,
		kind: "file " + path,
	}
	s.closers = append(s.closers, func() error { return f.Close(ctx) })
	s.src = f.Reader(ctx)
	if err := s.init(path); err != nil {
		s.closeAll()
		return nil, errors.E(err, "stream: open", path)
	}
	vlog.VI(1).Infof("stream: opened %s (%v)", path, opts.Type)
	return s, nil
}

// NewReader creates a stream over r. The stream does not close r.
func NewReader(r io.Reader, optList ...Opts) *Stream {
	opts := mergeOpts(optList)
	if opts.Type == Unknown {
		opts.Type = Map
	}
	s := &Stream{info: Info{Type: opts.Type, Quality: opts.Quality}, opts: opts, src: r, kind: "byte stream"}
	s.init("") // nolint: errcheck
	return s
}

// NewProcess creates a stream over stdout, the standard output of proc.
// Close drains stdout, waits for proc and reports its exit status.
// Opts.RemoveOnClose is ignored.
func NewProcess(stdout io.ReadCloser, proc Process, optList ...Opts) *Stream {
	opts := mergeOpts(optList)
	opts.RemoveOnClose = false
	if opts.Type == Unknown {
		opts.Type = Map
	}
	s := &Stream{info: Info{Type: opts.Type, Quality: opts.Quality}, opts: opts, proc: proc, src: stdout, kind: "process output"}
	s.closers = append(s.closers, stdout.Close)
	s.init("") // nolint: errcheck
	return s
}

func mergeOpts(optList []Opts) Opts {
	opts := Opts{}
	for _, o := range optList {
		if o.Type != Unknown {
			opts.Type = o.Type
		}
		if o.Quality != "" {
			opts.Quality = o.Quality
		}
		opts.RemoveOnClose = opts.RemoveOnClose || o.RemoveOnClose
	}
	return opts
}

func (s *Stream) init(path string) error {
	s.in = s.src
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(s.src)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, gz.Close)
		s.in = gz
	case strings.HasSuffix(path, ".sz"):
		s.in = snappy.NewReader(s.src)
	}
	switch s.opts.Type {
	case Map:
		s.mapScan = gemmap.NewScanner(s.in)
	case Sequence:
		s.seqScan = fastq.NewScanner(s.in, fastq.ID|fastq.Seq|fastq.Qual)
	}
	return nil
}

// Info implements Iterator.
func (s *Stream) Info() Info { return s.info }

// Scan implements Iterator.
func (s *Stream) Scan() bool {
	if s.done || s.closed || s.err != nil {
		return false
	}
	if s.rawUsed {
		s.err = errors.E(errors.Invalid, "stream: Scan called after Raw")
		return false
	}
	switch s.opts.Type {
	case Map:
		if s.mapScan.Scan() {
			s.rec = s.mapScan.Read()
			return true
		}
		s.err = s.mapScan.Err()
	case Sequence:
		var r fastq.Read
		if s.seqScan.Scan(&r) {
			s.rec = gemmap.FromSequence(&r)
			return true
		}
		if err := s.seqScan.Err(); err != nil {
			s.err = errors.E(err, "stream: reading sequences", s.name())
		}
	default:
		s.err = errors.E(errors.Invalid, fmt.Sprintf("stream: %v records cannot be decoded, use Raw", s.opts.Type))
	}
	s.rec = nil
	if s.err == nil {
		s.finish()
	}
	return false
}

// finish is called once the stream is exhausted.
func (s *Stream) finish() {
	s.done = true
	if s.proc != nil {
		if err := s.proc.Wait(); err != nil {
			s.err = err
		}
		s.proc = nil
	}
	s.closeAll()
	s.removeArtifacts()
}

// Record implements Iterator.
func (s *Stream) Record() *gemmap.Read { return s.rec }

// Err implements Iterator.
func (s *Stream) Err() error { return s.err }

// Raw implements RawSource.
func (s *Stream) Raw() (io.Reader, error) {
	if s.closed || s.done {
		return nil, errors.E(errors.Invalid, "stream: Raw called on a finished stream")
	}
	if s.rec != nil {
		return nil, errors.E(errors.Invalid, "stream: Raw called after Scan")
	}
	s.rawUsed = true
	return s.in, nil
}

// Close implements Iterator. For process backed streams Close reads the
// remaining output so that the process does not block on a full pipe,
// waits for it and returns its exit error.
func (s *Stream) Close() error {
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	err := s.err
	if s.proc != nil {
		if _, e := io.Copy(ioutil.Discard, s.src); e != nil {
			log.Debug.Printf("stream: draining %s: %v", s.name(), e)
		}
		if e := s.proc.Wait(); e != nil && err == nil {
			err = e
		}
		s.proc = nil
	}
	if e := s.closeAll(); e != nil && err == nil {
		err = e
	}
	s.removeArtifacts()
	s.closeErr = err
	return err
}

// Cancel kills the backing process, if any, and releases the stream
// without waiting for the remaining output. The exit status of a killed
// process is not reported.
func (s *Stream) Cancel() {
	if s.closed {
		return
	}
	s.closed = true
	if s.proc != nil {
		s.proc.Terminate()
		s.closeAll() // nolint: errcheck
		if err := s.proc.Wait(); err != nil {
			vlog.VI(1).Infof("stream: canceled %s: %v", s.name(), err)
		}
		s.proc = nil
	}
	s.closeAll() // nolint: errcheck
	s.removeArtifacts()
	s.closeErr = s.err
}

// Clone implements Iterator. Only file backed streams can be cloned. The
// clone never removes the backing file.
func (s *Stream) Clone() (Iterator, error) {
	if s.info.Path == "" {
		return nil, &NotCloneableError{Source: s.kind}
	}
	opts := s.opts
	opts.RemoveOnClose = false
	return Open(s.info.Path, opts)
}

func (s *Stream) name() string {
	if s.info.Path != "" {
		return s.info.Path
	}
	return "<" + s.opts.Type.String() + " stream>"
}

func (s *Stream) closeAll() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if e := s.closers[i](); e != nil && err == nil {
			err = e
		}
	}
	s.closers = nil
	return err
}

func (s *Stream) removeArtifacts() {
	if !s.opts.RemoveOnClose || s.info.Path == "" {
		return
	}
	s.cleanup.Do(func() {
		if err := file.Remove(vcontext.Background(), s.info.Path); err != nil {
			log.Error.Printf("stream: remove %s: %v", s.info.Path, err)
			return
		}
		vlog.VI(1).Infof("stream: removed %s", s.info.Path)
	})
}

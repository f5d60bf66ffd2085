package merge

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gemtools/encoding/gemmap"
	"github.com/grailbio/gemtools/stream"
	"github.com/klauspost/compress/gzip"
)

const maxLineSize = 256 << 20

type countingWriter struct {
	w io.Writer
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}

// fileStreams returns the target and source of m if the merge can run on
// the raw files: one source, both map streams backed by files, and no
// read consumed yet.
func (m *Merger) fileStreams() (target, source *stream.Stream, ok bool) {
	if len(m.sources) != 1 || m.scanned {
		return nil, nil, false
	}
	target, ok1 := m.target.(*stream.Stream)
	source, ok2 := m.sources[0].(*stream.Stream)
	if !ok1 || !ok2 {
		return nil, nil, false
	}
	for _, s := range []*stream.Stream{target, source} {
		if info := s.Info(); info.Path == "" || info.Type != stream.Map {
			return nil, nil, false
		}
	}
	return target, source, true
}

// WriteTo writes the merged reads to w as map lines and closes the
// Merger. It implements io.WriterTo.
func (m *Merger) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := m.writeTo(cw)
	if e := m.Close(); e != nil && err == nil {
		err = e
	}
	return cw.n, err
}

func (m *Merger) writeTo(w io.Writer) error {
	if target, source, ok := m.fileStreams(); ok {
		tr, err := target.Raw()
		if err != nil {
			return err
		}
		sr, err := source.Raw()
		if err != nil {
			return err
		}
		log.Debug.Printf("merge: using file merge for %s", m)
		return MergeFiles(tr, sr, w, m.opts)
	}
	mw := gemmap.NewWriter(w)
	for m.Scan() {
		if err := mw.WriteLine(m.result.Line); err != nil {
			return err
		}
	}
	if m.err != nil {
		return m.err
	}
	return mw.Flush()
}

// MergeToFile writes the merged reads to path, compressed if path ends in
// .gz, and returns a stream over the result.
func (m *Merger) MergeToFile(path string) (*stream.Stream, error) {
	ctx := vcontext.Background()
	f, err := file.Create(ctx, path)
	if err != nil {
		m.Close() // nolint: errcheck
		return nil, errors.E(err, "merge: create", path)
	}
	var (
		out io.Writer = f.Writer(ctx)
		gz  *gzip.Writer
	)
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(out)
		out = gz
	}
	_, err = m.WriteTo(out)
	if gz != nil {
		if e := gz.Close(); e != nil && err == nil {
			err = e
		}
	}
	if e := f.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, errors.E(err, "merge: write", path)
	}
	return stream.Open(path, stream.Opts{Type: stream.Map, Quality: m.target.Info().Quality})
}

type lineScanner struct {
	*bufio.Scanner
}

func newLineScanner(r io.Reader) lineScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	return lineScanner{s}
}

// next returns the next non-empty line.
func (s lineScanner) next() (string, bool) {
	for s.Scan() {
		if line := s.Text(); line != "" {
			return line, true
		}
	}
	return "", false
}

// MergeFiles merges the map lines of source into those of target and
// writes the result to w. It is equivalent to a Merger with one source,
// but decodes into two reusable reads instead of allocating per line.
func MergeFiles(target, source io.Reader, w io.Writer, opts Opts) error {
	var (
		ts      = newLineScanner(target)
		ss      = newLineScanner(source)
		mw      = gemmap.NewWriter(w)
		r, c    gemmap.Read
		cached  bool
		srcDone bool
	)
	for {
		line, ok := ts.next()
		if !ok {
			break
		}
		if err := gemmap.DecodeInto(&r, line); err != nil {
			return err
		}
		if !srcDone && !cached {
			next, ok := ss.next()
			switch {
			case ok:
				if err := gemmap.DecodeInto(&c, next); err != nil {
					return err
				}
				cached = true
			case ss.Err() != nil:
				return ss.Err()
			default:
				srcDone = true
			}
		}
		if cached && c.ID != r.ID {
			if opts.Strict {
				return &DesyncError{Target: r.ID, Source: c.ID}
			}
		} else if cached {
			if err := combine(&r, &c, opts.Exclusive); err != nil {
				return err
			}
			cached = false
		}
		if err := mw.WriteLine(r.Line); err != nil {
			return err
		}
	}
	if err := ts.Err(); err != nil {
		return err
	}
	return mw.Flush()
}

package stream

import (
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gemtools/encoding/fastq"
	"github.com/grailbio/gemtools/encoding/gemmap"
)

type sliceIterator struct {
	reads []*gemmap.Read
	info  Info
	i     int
}

// FromReads creates a cloneable Iterator over the given reads. The reads
// are not copied.
func FromReads(reads []*gemmap.Read, info Info) Iterator {
	if info.Type == Unknown {
		info.Type = Map
	}
	return &sliceIterator{reads: reads, info: info, i: -1}
}

func (it *sliceIterator) Scan() bool {
	if it.i+1 >= len(it.reads) {
		it.i = len(it.reads)
		return false
	}
	it.i++
	return true
}

func (it *sliceIterator) Record() *gemmap.Read { return it.reads[it.i] }
func (it *sliceIterator) Err() error           { return nil }
func (it *sliceIterator) Close() error         { return nil }
func (it *sliceIterator) Info() Info           { return it.info }

func (it *sliceIterator) Clone() (Iterator, error) {
	return FromReads(it.reads, it.info), nil
}

// TransformFunc maps a read to its replacement. Returning keep=false drops
// the read.
type TransformFunc func(r *gemmap.Read) (out *gemmap.Read, keep bool, err error)

type transformIterator struct {
	src Iterator
	fn  TransformFunc
	rec *gemmap.Read
	err error
}

// Transform creates an Iterator that applies fn to every read of src.
// Closing the result closes src.
func Transform(src Iterator, fn TransformFunc) Iterator {
	return &transformIterator{src: src, fn: fn}
}

// Filter creates an Iterator over the reads of src for which keep returns
// true.
func Filter(src Iterator, keep func(r *gemmap.Read) (bool, error)) Iterator {
	return Transform(src, func(r *gemmap.Read) (*gemmap.Read, bool, error) {
		ok, err := keep(r)
		return r, ok, err
	})
}

// Unmapped reports whether r has no mapping within its mismatch strata.
// It is a predicate for Filter.
func Unmapped(r *gemmap.Read) (bool, error) {
	n, err := gemmap.MinMismatches(r)
	return n < 0, err
}

func (it *transformIterator) Scan() bool {
	if it.err != nil {
		return false
	}
	for it.src.Scan() {
		out, keep, err := it.fn(it.src.Record())
		if err != nil {
			it.err = err
			return false
		}
		if keep {
			it.rec = out
			return true
		}
	}
	return false
}

func (it *transformIterator) Record() *gemmap.Read { return it.rec }
func (it *transformIterator) Info() Info           { return it.src.Info() }

func (it *transformIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.src.Err()
}

func (it *transformIterator) Close() error {
	err := it.src.Close()
	if it.err != nil {
		return it.err
	}
	return err
}

func (it *transformIterator) Clone() (Iterator, error) {
	src, err := it.src.Clone()
	if err != nil {
		return nil, err
	}
	return Transform(src, it.fn), nil
}

type interleaveIterator struct {
	first, second Iterator
	rec           *gemmap.Read
	err           error
}

// Interleave creates an Iterator that pairs the i'th read of first with the
// i'th read of second. The ids of the pair drop a trailing "/1", and the
// sequences and qualities of the mates are joined with a space. Both
// sources must yield the same number of reads.
func Interleave(first, second Iterator) Iterator {
	return &interleaveIterator{first: first, second: second}
}

func mateID(id string) string {
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	if strings.HasSuffix(id, "/1") || strings.HasSuffix(id, "/2") {
		id = id[:len(id)-2]
	}
	return id
}

func (it *interleaveIterator) Scan() bool {
	if it.err != nil {
		return false
	}
	ok1, ok2 := it.first.Scan(), it.second.Scan()
	if !ok1 || !ok2 {
		if ok1 != ok2 && it.first.Err() == nil && it.second.Err() == nil {
			it.err = errors.E(fastq.ErrDiscordant, "stream: interleave")
		}
		return false
	}
	r1, r2 := it.first.Record(), it.second.Record()
	rec := &gemmap.Read{
		ID:  mateID(r1.ID),
		Seq: r1.Seq + " " + r2.Seq,
	}
	if r1.Qual != "" && r2.Qual != "" {
		rec.Qual = r1.Qual + " " + r2.Qual
	}
	rec.Summary, rec.Mappings = gemmap.NoMappings, gemmap.NoMappings
	rec.Line = gemmap.Encode(rec)
	it.rec = rec
	return true
}

func (it *interleaveIterator) Record() *gemmap.Read { return it.rec }
func (it *interleaveIterator) Info() Info           { return it.first.Info() }

func (it *interleaveIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	if err := it.first.Err(); err != nil {
		return err
	}
	return it.second.Err()
}

func (it *interleaveIterator) Close() error {
	err1 := it.first.Close()
	err2 := it.second.Close()
	switch {
	case it.err != nil:
		return it.err
	case err1 != nil:
		return err1
	}
	return err2
}

func (it *interleaveIterator) Clone() (Iterator, error) {
	first, err := it.first.Clone()
	if err != nil {
		return nil, err
	}
	second, err := it.second.Clone()
	if err != nil {
		first.Close() // nolint: errcheck
		return nil, err
	}
	return Interleave(first, second), nil
}

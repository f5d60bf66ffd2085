package gemmap

import (
	"io"
	"strings"

	"github.com/grailbio/gemtools/encoding/fastq"
)

// QualityFiller is the quality character used to fabricate or pad
// qualities on FASTQ export.
const QualityFiller = '['

// DefaultFormat returns FASTA for reads without qualities and FASTQ
// otherwise.
func (r *Read) DefaultFormat() fastq.Format {
	if r.Qual == "" {
		return fastq.FASTA
	}
	return fastq.FASTQ
}

// SequenceEntries converts r to FASTA or FASTQ entries. Paired reads
// yield two entries whose names carry the /1 and /2 suffixes. For FASTQ,
// missing qualities are fabricated with QualityFiller. Qualities whose
// length differs from the sequence are padded or cut when trimQualities
// is set; otherwise a *LengthMismatchError is returned. An empty sequence
// is always a *LengthMismatchError.
func (r *Read) SequenceEntries(format fastq.Format, trimQualities bool) ([]fastq.Read, error) {
	if !r.Paired() {
		e, err := sequenceEntry(r.ID, r.Seq, r.Qual, format, trimQualities)
		if err != nil {
			return nil, err
		}
		return []fastq.Read{e}, nil
	}
	seqs := strings.SplitN(r.Seq, " ", 2)
	var quals [2]string
	if r.Qual != "" {
		q := strings.SplitN(r.Qual, " ", 2)
		copy(quals[:], q)
	}
	out := make([]fastq.Read, 2)
	for i, suffix := range []string{"/1", "/2"} {
		e, err := sequenceEntry(r.ID+suffix, seqs[i], quals[i], format, trimQualities)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func sequenceEntry(id, seq, qual string, format fastq.Format, trimQualities bool) (fastq.Read, error) {
	if len(seq) == 0 {
		return fastq.Read{}, &LengthMismatchError{ID: id, Seq: seq, Qual: qual}
	}
	if format == fastq.FASTA {
		return fastq.Read{ID: ">" + id, Seq: seq}, nil
	}
	switch {
	case len(qual) == 0:
		qual = strings.Repeat(string(QualityFiller), len(seq))
	case len(qual) != len(seq):
		if !trimQualities {
			return fastq.Read{}, &LengthMismatchError{ID: id, Seq: seq, Qual: qual}
		}
		if len(qual) < len(seq) {
			qual += strings.Repeat(string(QualityFiller), len(seq)-len(qual))
		} else {
			qual = qual[:len(seq)]
		}
	}
	return fastq.Read{ID: "@" + id, Seq: seq, Unk: "+", Qual: qual}, nil
}

// WriteSequence writes r to w as FASTA or FASTQ entries.
func WriteSequence(w io.Writer, r *Read, format fastq.Format, trimQualities bool) error {
	entries, err := r.SequenceEntries(format, trimQualities)
	if err != nil {
		return err
	}
	fw := fastq.NewFormatWriter(w, format)
	for i := range entries {
		if err := fw.Write(&entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// FromSequence converts a FASTA or FASTQ entry to a read without mapping
// information. The complete header line, comments included, becomes the
// read id.
func FromSequence(e *fastq.Read) *Read {
	r := &Read{ID: e.Name(), Seq: e.Seq, Qual: e.Qual, Summary: "-", Mappings: NoMappings}
	r.Line = Encode(r)
	return r
}

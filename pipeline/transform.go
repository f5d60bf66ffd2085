package pipeline

import (
	"io"

	"github.com/grailbio/gemtools/encoding/fastq"
	"github.com/grailbio/gemtools/encoding/gemmap"
)

// Transform serializes one read into the input of the first stage.
type Transform func(w io.Writer, r *gemmap.Read) error

// Raw writes the line the read was decoded from.
func Raw(w io.Writer, r *gemmap.Read) error {
	line := r.Line
	if line == "" {
		line = gemmap.Encode(r)
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}

// ToMap writes reads as map lines. With noMaxMappings, a summary equal to
// the max mappings count is written as 0.
func ToMap(noMaxMappings bool) Transform {
	return func(w io.Writer, r *gemmap.Read) error {
		_, err := io.WriteString(w, r.MapLine(noMaxMappings)+"\n")
		return err
	}
}

// ToSequence writes reads as FASTQ, or as FASTA if they carry no
// qualities.
func ToSequence(trimQualities bool) Transform {
	return func(w io.Writer, r *gemmap.Read) error {
		return gemmap.WriteSequence(w, r, r.DefaultFormat(), trimQualities)
	}
}

// ToFASTQ writes reads as FASTQ, fabricating qualities where needed.
func ToFASTQ(trimQualities bool) Transform {
	return func(w io.Writer, r *gemmap.Read) error {
		return gemmap.WriteSequence(w, r, fastq.FASTQ, trimQualities)
	}
}

package stream

import (
	"fmt"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// RecordReader is implemented by both sam.Reader and bam.Reader.
type RecordReader interface {
	Header() *sam.Header
	Read() (*sam.Record, error)
}

// SAMReader decodes the alignments of a SAM or BAM stream. The stream must
// not have been scanned; it must still be closed by the caller.
func SAMReader(it Iterator) (RecordReader, error) {
	src, ok := it.(RawSource)
	if !ok {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("stream: %T has no raw bytes", it))
	}
	r, err := src.Raw()
	if err != nil {
		return nil, err
	}
	switch t := it.Info().Type; t {
	case SAM:
		return sam.NewReader(r)
	case BAM:
		return bam.NewReader(r, runtime.NumCPU())
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("stream: %v is not an alignment stream", t))
	}
}

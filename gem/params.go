package gem

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gemtools/stream"
)

// Executables lists the logical names of the tools used by this package.
var Executables = []string{
	"gem-indexer",
	"gem-mapper",
	"gem-rna-mapper",
	"gem-map-2-map",
	"gem-2-sam",
	"samtools",
	"gem-info",
	"splits-2-junctions",
	"gem-retriever",
	"compute-transcriptome",
	"transcriptome-2-genome",
}

// Qualities.
const (
	Offset33       = "offset-33"
	Offset64       = "offset-64"
	IgnoreQuality  = "ignore"
	indexExtension = ".gem"
)

// IndexPath checks that the GEM index exists and returns its path, with
// the .gem extension if gemSuffix is set and without it otherwise.
func IndexPath(index string, gemSuffix bool) (string, error) {
	if index == "" {
		return "", errors.E(errors.Invalid, "gem: no index specified")
	}
	path := index
	if !strings.HasSuffix(path, indexExtension) {
		path += indexExtension
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.E(errors.NotExist, err, "gem: index not found:", path)
	}
	if gemSuffix {
		return path, nil
	}
	return strings.TrimSuffix(path, indexExtension), nil
}

// QualityParam converts a quality specification to the value of the -q
// flag. It accepts the flag values themselves, a numeric offset such as
// "33", and "none". The empty string means ignore.
func QualityParam(quality string) (string, error) {
	switch quality {
	case Offset33, Offset64, IgnoreQuality:
		return quality, nil
	case "", "none":
		return IgnoreQuality, nil
	}
	offset, err := strconv.Atoi(quality)
	if err != nil {
		return "", errors.E(errors.Invalid, fmt.Sprintf("gem: invalid quality %q", quality))
	}
	return fmt.Sprintf("offset-%d", offset), nil
}

// inputQuality returns the quality flag for quality, falling back to the
// quality of the input stream when quality is empty.
func inputQuality(quality string, input stream.Iterator) (string, error) {
	if quality == "" && input != nil {
		quality = input.Info().Quality
	}
	return QualityParam(quality)
}

// SpliceSite is a donor/acceptor consensus pair.
type SpliceSite struct {
	Donor, Acceptor string
}

var (
	// DefaultSpliceConsensus is used by the split mapper when no consensus
	// is given.
	DefaultSpliceConsensus = []SpliceSite{{"GT", "AG"}, {"CT", "AC"}}
	// ExtendedSpliceConsensus adds the non canonical sites.
	ExtendedSpliceConsensus = []SpliceSite{
		{"GT", "AG"}, {"CT", "AC"},
		{"GC", "AG"}, {"CT", "GC"},
		{"ATATC", "A."}, {".T", "GATAT"},
		{"GTATC", "AT"}, {"AT", "GATAC"},
	}
)

// SpliceConsensusParam formats sites as the value of the split mapper -c
// flag, e.g. "GT"+"AG","CT"+"AC". Nil sites yield the default consensus.
func SpliceConsensusParam(sites []SpliceSite) string {
	if sites == nil {
		sites = DefaultSpliceConsensus
	}
	parts := make([]string, len(sites))
	for i, s := range sites {
		parts[i] = strconv.Quote(s.Donor) + "+" + strconv.Quote(s.Acceptor)
	}
	return strings.Join(parts, ",")
}

// ExtraArgs splits a space separated list of extra tool arguments.
func ExtraArgs(extra string) []string {
	return strings.Fields(extra)
}

func itoa(v int) string { return strconv.Itoa(v) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// checkTrim validates a trim specification: nil, or the number of bases to
// cut from the left and the right.
func checkTrim(trim []int) error {
	if trim == nil {
		return nil
	}
	if len(trim) != 2 || trim[0] < 0 || trim[1] < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("gem: trim must be two non-negative lengths, got %v", trim))
	}
	return nil
}

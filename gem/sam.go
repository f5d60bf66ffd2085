package gem

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gemtools/encoding/gemmap"
	"github.com/grailbio/gemtools/pipeline"
	"github.com/grailbio/gemtools/stream"
)

// GEM2SAMOpts configures gem-2-sam.
type GEM2SAMOpts struct {
	// Index is optional; it must exist when set.
	Index     string
	SingleEnd bool
	Compact   bool
	Threads   int
	Quality   string
	// CheckIDs rewrites paired read ids of the form "name 1:..." to
	// "name/1", as gem-2-sam expects. Ignored for single end reads.
	CheckIDs bool
}

// DefaultGEM2SAMOpts are the default conversion options.
var DefaultGEM2SAMOpts = GEM2SAMOpts{Threads: 1, CheckIDs: true}

// PairID rewrites a read id carrying the mate number as a comment, as in
// "name 1:N:0", to "name/1". Ids without a comment are returned unchanged.
func PairID(id string) (string, error) {
	fields := strings.Fields(id)
	if len(fields) < 2 {
		return id, nil
	}
	if c := fields[1][0]; c == '1' || c == '2' {
		return fields[0] + "/" + string(c), nil
	}
	return "", errors.E(errors.Invalid, fmt.Sprintf("gem: unable to identify the mate number of read %q", id))
}

func pairIDTransform(w io.Writer, r *gemmap.Read) error {
	id, err := PairID(r.ID)
	if err != nil {
		return err
	}
	if id != r.ID {
		c := *r
		c.ID = id
		r = &c
	}
	_, err = io.WriteString(w, r.MapLine(false)+"\n")
	return err
}

// GEM2SAMPlan builds the SAM conversion chain over input.
func GEM2SAMPlan(input stream.Iterator, opts GEM2SAMOpts) (pipeline.Plan, error) {
	args := []string{"gem-2-sam", "-T", itoa(opts.Threads)}
	if opts.Index != "" {
		index, err := IndexPath(opts.Index, true)
		if err != nil {
			return pipeline.Plan{}, err
		}
		args = append(args, "-I", index)
	}
	quality, err := inputQuality(opts.Quality, input)
	if err != nil {
		return pipeline.Plan{}, err
	}
	args = append(args, "-q", quality)
	if opts.SingleEnd {
		args = append(args, "--expect-single-end-reads")
	}
	if opts.Compact {
		args = append(args, "-c")
	}
	plan := pipeline.Plan{
		Name:       "gem-2-sam",
		Stages:     []pipeline.Stage{{Args: args}},
		Input:      input,
		Transform:  pipeline.ToMap(false),
		OutputType: stream.SAM,
		Quality:    quality,
	}
	if opts.CheckIDs && !opts.SingleEnd {
		plan.Transform = pairIDTransform
	}
	return plan, nil
}

// GEM2SAM converts the mapped reads of input to SAM.
func (t *Tools) GEM2SAM(ctx context.Context, input stream.Iterator, output string, opts GEM2SAMOpts) (*stream.Stream, error) {
	plan, err := GEM2SAMPlan(input, opts)
	if err != nil {
		closeInput(input)
		return nil, err
	}
	return t.run(ctx, plan, output)
}

// SAM2BAMOpts configures the BAM conversion.
type SAM2BAMOpts struct {
	// Sorted sorts the alignments by coordinate.
	Sorted bool
	// MapQ, if positive, drops alignments with a lower mapping quality.
	MapQ int
}

// SAM2BAMPlan builds the BAM conversion chain over the raw bytes of input,
// a SAM stream. With sortPrefix, samtools sort writes sortPrefix.bam
// itself.
func SAM2BAMPlan(input stream.Iterator, sortPrefix string, opts SAM2BAMOpts) pipeline.Plan {
	view := []string{"view", "-S", "-b"}
	if opts.MapQ > 0 {
		view = append(view, "-q", itoa(opts.MapQ))
	}
	view = append(view, "-")
	plan := pipeline.Plan{
		Name:        "sam-2-bam",
		Stages:      []pipeline.Stage{pipeline.Command("samtools", view...)},
		Input:       input,
		Passthrough: true,
		OutputType:  stream.BAM,
		Quality:     input.Info().Quality,
	}
	if opts.Sorted {
		plan.Stages = append(plan.Stages, pipeline.Command("samtools", "sort", "-", sortPrefix))
	}
	return plan
}

// SAM2BAM converts the SAM stream input to BAM. Sorted output is written
// to a file: output, or a temporary file removed after iteration when
// output is empty.
func (t *Tools) SAM2BAM(ctx context.Context, input stream.Iterator, output string, opts SAM2BAMOpts) (*stream.Stream, error) {
	if !opts.Sorted {
		return t.run(ctx, SAM2BAMPlan(input, "", opts), output)
	}
	prefix := strings.TrimSuffix(output, ".bam")
	if output == "" {
		f, err := ioutil.TempFile(t.Config.TempDir, "bam_sort")
		if err != nil {
			closeInput(input)
			return nil, errors.E(err, "gem: creating sort prefix")
		}
		prefix = f.Name()
		f.Close()         // nolint: errcheck
		os.Remove(prefix) // nolint: errcheck
	}
	if err := t.wait(ctx, SAM2BAMPlan(input, prefix, opts)); err != nil {
		return nil, err
	}
	return stream.Open(prefix+".bam", stream.Opts{
		Type:          stream.BAM,
		Quality:       input.Info().Quality,
		RemoveOnClose: output == "",
	})
}

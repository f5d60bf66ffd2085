package gem

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/gemtools/merge"
	"github.com/grailbio/gemtools/pipeline"
	"github.com/grailbio/gemtools/stream"
)

// MapperOpts configures gem-mapper.
type MapperOpts struct {
	// Mismatches is the number, or fraction of the read length, of
	// allowed mismatches.
	Mismatches float64
	// Delta is the number of strata searched after the best one.
	Delta int
	// Quality is the quality encoding of the input. Empty means the
	// quality of the input stream.
	Quality           string
	QualityThreshold  int
	MaxDecodedMatches int
	// MinDecodedStrata is the number of strata decoded fully. It is raised
	// to Delta+1 unless ForceMinDecodedStrata is set.
	MinDecodedStrata      int
	ForceMinDecodedStrata bool
	MinMatchedBases       float64
	MaxBigIndelLength     int
	// MaxEditDistance is passed as -e when positive.
	MaxEditDistance  float64
	MismatchAlphabet string
	// Trim, if set, holds the number of bases cut from the left and the
	// right of every read before mapping.
	Trim []int
	// UniquePairing enables --unique-pairing and rewrites sentinel
	// summaries of the mapper output.
	UniquePairing bool
	Threads       int
	// KeyFile, if set, converts transcriptome coordinates to genome
	// coordinates with transcriptome-2-genome.
	KeyFile string
	// Extra arguments appended to the mapper command line.
	Extra []string
}

// DefaultMapperOpts are the default mapper options.
var DefaultMapperOpts = MapperOpts{
	Mismatches:        0.04,
	Quality:           Offset33,
	QualityThreshold:  26,
	MaxDecodedMatches: 20,
	MinDecodedStrata:  1,
	MinMatchedBases:   0.80,
	MaxBigIndelLength: 15,
	MaxEditDistance:   0.20,
	MismatchAlphabet:  "ACGT",
	Threads:           1,
}

// DefaultTranscriptMapperOpts are the default options for TranscriptMapper.
var DefaultTranscriptMapperOpts = func() MapperOpts {
	opts := DefaultMapperOpts
	opts.MaxDecodedMatches = 100
	return opts
}()

// trimStage restores the reads trimmed by pipeline.Trim.
func trimStage(threads int) pipeline.Stage {
	return pipeline.Stage{Name: "trim", Args: []string{"gem-map-2-map", "-c", "-T", itoa(threads)}}
}

var maxMappingsStage = pipeline.Stage{Name: "max-mappings", Filter: pipeline.MaxMappingsFilter}

// MapperPlan builds the gem-mapper chain over input.
func MapperPlan(input stream.Iterator, index string, opts MapperOpts, trimQualities bool) (pipeline.Plan, error) {
	index, err := IndexPath(index, true)
	if err != nil {
		return pipeline.Plan{}, err
	}
	quality, err := inputQuality(opts.Quality, input)
	if err != nil {
		return pipeline.Plan{}, err
	}
	if err := checkTrim(opts.Trim); err != nil {
		return pipeline.Plan{}, err
	}
	if opts.Delta >= opts.MinDecodedStrata && !opts.ForceMinDecodedStrata {
		log.Printf("gem: changing min-decoded-strata from %d to %d to cope with delta of %d",
			opts.MinDecodedStrata, opts.Delta+1, opts.Delta)
		opts.MinDecodedStrata = opts.Delta + 1
	}
	args := []string{
		"gem-mapper", "-I", index,
		"-q", quality,
		"-m", ftoa(opts.Mismatches),
		"-s", itoa(opts.Delta),
		"--max-decoded-matches", itoa(opts.MaxDecodedMatches),
		"--min-decoded-strata", itoa(opts.MinDecodedStrata),
		"--min-matched-bases", ftoa(opts.MinMatchedBases),
		"--gem-quality-threshold", itoa(opts.QualityThreshold),
		"--max-big-indel-length", itoa(opts.MaxBigIndelLength),
		"--mismatch-alphabet", opts.MismatchAlphabet,
		"-T", itoa(opts.Threads),
	}
	if opts.UniquePairing {
		args = append(args, "--unique-pairing")
	}
	if opts.MaxEditDistance > 0 {
		args = append(args, "-e", ftoa(opts.MaxEditDistance))
	}
	args = append(args, opts.Extra...)

	plan := pipeline.Plan{
		Name:       "gem-mapper",
		Stages:     []pipeline.Stage{{Args: args}},
		Input:      input,
		Transform:  pipeline.ToSequence(trimQualities),
		OutputType: stream.Map,
		Quality:    quality,
	}
	if opts.UniquePairing {
		plan.Stages = append(plan.Stages, maxMappingsStage)
	}
	if opts.Trim != nil {
		plan.Input = pipeline.Trim(input, opts.Trim[0], opts.Trim[1], true)
		plan.Stages = append(plan.Stages, trimStage(opts.Threads))
	}
	if opts.KeyFile != "" {
		plan.Stages = append(plan.Stages, pipeline.Command("transcriptome-2-genome", opts.KeyFile, itoa(opts.Threads)))
	}
	return plan, nil
}

// Mapper maps the reads of input against index.
func (t *Tools) Mapper(ctx context.Context, input stream.Iterator, index, output string, opts MapperOpts) (*stream.Stream, error) {
	plan, err := MapperPlan(input, index, opts, t.Config.TrimQualities)
	if err != nil {
		closeInput(input)
		return nil, err
	}
	return t.run(ctx, plan, output)
}

// TranscriptMapper maps input against every transcriptome index, converts
// the results to genome coordinates with the matching key file and merges
// them. The input must be cloneable. The mappings run in parallel into
// temporary files, which are removed once merged.
//
// With an output path, the merged reads are written there and a stream
// over the file is returned. Otherwise the merged stream is returned.
func (t *Tools) TranscriptMapper(ctx context.Context, input stream.Iterator, indices, keyFiles []string, output string, opts MapperOpts) (stream.Iterator, error) {
	defer closeInput(input)
	if len(indices) == 0 || len(indices) != len(keyFiles) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("gem: %d indices but %d key files", len(indices), len(keyFiles)))
	}
	plans := make([]pipeline.Plan, len(indices))
	for i, index := range indices {
		clone, err := input.Clone()
		if err == nil {
			o := opts
			o.KeyFile = keyFiles[i]
			plans[i], err = MapperPlan(clone, index, o, t.Config.TrimQualities)
			if err != nil {
				clone.Close() // nolint: errcheck
			}
		}
		if err != nil {
			for _, p := range plans[:i] {
				closeInput(p.Input)
			}
			return nil, err
		}
		plans[i].Name = fmt.Sprintf("gem-mapper[%s]", index)
		plans[i].TempOutput = true
	}
	var (
		outputs = make([]*stream.Stream, len(plans))
		started = make([]bool, len(plans))
	)
	err := traverse.Each(len(plans), func(i int) (err error) {
		started[i] = true
		outputs[i], err = pipeline.Run(ctx, t.Config, plans[i])
		return err
	})
	if err != nil {
		for i, o := range outputs {
			switch {
			case o != nil:
				o.Close() // nolint: errcheck
			case !started[i]:
				// Run owns the inputs of plans it was given.
				closeInput(plans[i].Input)
			}
		}
		return nil, err
	}
	sources := make([]stream.Iterator, len(outputs)-1)
	for i, o := range outputs[1:] {
		sources[i] = o
	}
	merged := merge.New(outputs[0], sources, merge.Opts{})
	if output == "" {
		return merged, nil
	}
	s, err := merged.MergeToFile(output)
	if err != nil {
		return nil, err
	}
	return s, nil
}

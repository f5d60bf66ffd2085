package gem

import (
	"context"
	"path/filepath"

	"github.com/grailbio/gemtools/pipeline"
	"github.com/grailbio/gemtools/stream"
)

// DefaultSplitFilter is the default split map filter.
const DefaultSplitFilter = "same-chromosome,same-strand"

// SplitMapperOpts configures gem-rna-mapper.
type SplitMapperOpts struct {
	Mismatches float64
	// Junctions is the fraction of allowed mismatches in known junctions.
	// It is used only with JunctionsFile.
	Junctions     float64
	JunctionsFile string
	// SpliceConsensus is used when no JunctionsFile is given. Nil means
	// DefaultSpliceConsensus.
	SpliceConsensus []SpliceSite
	// Filter is passed to -f unless empty.
	Filter             string
	RefinementStepSize int
	MinSplitSize       int
	MatchesThreshold   int
	StrataAfterFirst   int
	MismatchAlphabet   string
	Quality            string
	Trim               []int
	// FilterSplitmaps rewrites sentinel summaries of the mapper output.
	FilterSplitmaps bool
	// PostValidate runs the result through Validate.
	PostValidate bool
	Threads      int
	// InputFile writes the input to a temporary file passed with -i,
	// for mapper builds that cannot read standard input.
	InputFile bool
	Extra     []string
}

// DefaultSplitMapperOpts are the default split mapper options.
var DefaultSplitMapperOpts = SplitMapperOpts{
	Mismatches:         0.04,
	Junctions:          0.02,
	Filter:             DefaultSplitFilter,
	RefinementStepSize: 2,
	MinSplitSize:       15,
	MatchesThreshold:   100,
	StrataAfterFirst:   1,
	MismatchAlphabet:   "ACGT",
	Quality:            Offset33,
	FilterSplitmaps:    true,
	PostValidate:       true,
	Threads:            1,
}

// SplitMapperPlan builds the gem-rna-mapper chain over input. Post
// validation is not part of the plan.
func SplitMapperPlan(input stream.Iterator, index string, opts SplitMapperOpts, trimQualities bool) (pipeline.Plan, error) {
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
	args := []string{
		"gem-rna-mapper", "-I", index,
		"-q", quality,
		"-m", ftoa(opts.Mismatches),
		"--min-split-size", itoa(opts.MinSplitSize),
		"--refinement-step-size", itoa(opts.RefinementStepSize),
		"--matches-threshold", itoa(opts.MatchesThreshold),
		"-s", itoa(opts.StrataAfterFirst),
		"--mismatch-alphabet", opts.MismatchAlphabet,
		"-T", itoa(opts.Threads),
	}
	if opts.JunctionsFile != "" {
		junctions, err := filepath.Abs(opts.JunctionsFile)
		if err != nil {
			return pipeline.Plan{}, err
		}
		args = append(args, "-J", junctions, "-j", ftoa(opts.Junctions))
	}
	if opts.Filter != "" {
		args = append(args, "-f", opts.Filter)
	}
	if opts.JunctionsFile == "" {
		args = append(args, "-c", SpliceConsensusParam(opts.SpliceConsensus))
	}
	if opts.InputFile {
		args = append(args, "-i", pipeline.InputPlaceholder)
	}
	args = append(args, opts.Extra...)

	plan := pipeline.Plan{
		Name:       "gem-rna-mapper",
		Stages:     []pipeline.Stage{{Args: args}},
		Input:      input,
		Transform:  pipeline.ToSequence(trimQualities),
		InputFile:  opts.InputFile,
		OutputType: stream.Map,
		Quality:    quality,
	}
	if opts.FilterSplitmaps {
		plan.Stages = append(plan.Stages, maxMappingsStage)
	}
	if opts.Trim != nil {
		plan.Input = pipeline.Trim(input, opts.Trim[0], opts.Trim[1], true)
		plan.Stages = append(plan.Stages, trimStage(maxInt(1, opts.Threads/2)))
	}
	return plan, nil
}

// SplitMapper maps the reads of input across splice junctions.
func (t *Tools) SplitMapper(ctx context.Context, input stream.Iterator, index, output string, opts SplitMapperOpts) (*stream.Stream, error) {
	plan, err := SplitMapperPlan(input, index, opts, t.Config.TrimQualities)
	if err != nil {
		closeInput(input)
		return nil, err
	}
	if !opts.PostValidate {
		return t.run(ctx, plan, output)
	}
	splitmaps, err := t.run(ctx, plan, "")
	if err != nil {
		return nil, err
	}
	return t.Validate(ctx, splitmaps, index, output, ValidateOpts{Threads: opts.Threads})
}

package gem

import (
	"context"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gemtools/pipeline"
	"github.com/grailbio/gemtools/stream"
)

// PairAlignOpts configures gem-mapper in paired alignment mode.
type PairAlignOpts struct {
	Quality                string
	QualityThreshold       int
	MaxDecodedMatches      int
	MinDecodedStrata       int
	MinInsertSize          int
	MaxInsertSize          int
	MaxEditDistance        float64
	MinMatchedBases        float64
	MaxExtendableMatches   int
	MaxMatchesPerExtension int
	UniquePairing          bool
	MapBothEnds            bool
	Threads                int
	Extra                  []string
}

// DefaultPairAlignOpts are the default paired alignment options.
var DefaultPairAlignOpts = PairAlignOpts{
	Quality:                Offset33,
	QualityThreshold:       26,
	MaxDecodedMatches:      20,
	MinDecodedStrata:       1,
	MaxInsertSize:          1000,
	MaxEditDistance:        0.30,
	MinMatchedBases:        0.80,
	MaxMatchesPerExtension: 1,
	Threads:                1,
}

// PairAlignPlan builds the paired alignment chain over input, a stream of
// mapped read pairs. The index is not checked for existence.
func PairAlignPlan(input stream.Iterator, index string, opts PairAlignOpts) (pipeline.Plan, error) {
	if index == "" {
		return pipeline.Plan{}, errors.E(errors.Invalid, "gem: no index specified")
	}
	if !strings.HasSuffix(index, indexExtension) {
		index += indexExtension
	}
	quality, err := inputQuality(opts.Quality, input)
	if err != nil {
		return pipeline.Plan{}, err
	}
	args := []string{
		"gem-mapper", "-p",
		"-I", index,
		"-q", quality,
		"--gem-quality-threshold", itoa(opts.QualityThreshold),
		"--max-decoded-matches", itoa(opts.MaxDecodedMatches),
		"--min-decoded-strata", itoa(opts.MinDecodedStrata),
		"--min-insert-size", itoa(opts.MinInsertSize),
		"--max-insert-size", itoa(opts.MaxInsertSize),
		"-E", ftoa(opts.MaxEditDistance),
		"--min-matched-bases", ftoa(opts.MinMatchedBases),
		"--max-extendable-matches", itoa(opts.MaxExtendableMatches),
		"--max-extensions-per-match", itoa(opts.MaxMatchesPerExtension),
		"-T", itoa(opts.Threads),
	}
	args = append(args, opts.Extra...)
	if opts.UniquePairing {
		args = append(args, "--unique-pairing")
	}
	if opts.MapBothEnds {
		args = append(args, "--map-both-ends")
	}
	return pipeline.Plan{
		Name:       "gem-pair-align",
		Stages:     []pipeline.Stage{{Args: args}},
		Input:      input,
		Transform:  pipeline.ToMap(false),
		OutputType: stream.Map,
		Quality:    quality,
	}, nil
}

// PairAlign pairs the mates of the mapped reads of input.
func (t *Tools) PairAlign(ctx context.Context, input stream.Iterator, index, output string, opts PairAlignOpts) (*stream.Stream, error) {
	plan, err := PairAlignPlan(input, index, opts)
	if err != nil {
		closeInput(input)
		return nil, err
	}
	return t.run(ctx, plan, output)
}

// map2mapPlan builds a gem-map-2-map plan over mapped reads. The output
// keeps the quality of the input.
func map2mapPlan(name string, input stream.Iterator, index string, args ...string) (pipeline.Plan, error) {
	index, err := IndexPath(index, true)
	if err != nil {
		return pipeline.Plan{}, err
	}
	plan := pipeline.Plan{
		Name:       name,
		Stages:     []pipeline.Stage{pipeline.Command("gem-map-2-map", append([]string{"-I", index}, args...)...)},
		Input:      input,
		Transform:  pipeline.ToMap(false),
		OutputType: stream.Map,
	}
	if input != nil {
		plan.Quality = input.Info().Quality
	}
	return plan, nil
}

// RealignPlan builds the realignment chain over input.
func RealignPlan(input stream.Iterator, index string, threads int) (pipeline.Plan, error) {
	return map2mapPlan("gem-realign", input, index, "-r", "-T", itoa(threads))
}

// Realign recomputes the alignments of the mapped reads of input.
func (t *Tools) Realign(ctx context.Context, input stream.Iterator, index, output string, threads int) (*stream.Stream, error) {
	plan, err := RealignPlan(input, index, threads)
	if err != nil {
		closeInput(input)
		return nil, err
	}
	return t.run(ctx, plan, output)
}

// ValidateOpts configures validation.
type ValidateOpts struct {
	// Score and Filter are passed to -s and -f unless empty.
	Score   string
	Filter  string
	Threads int
}

// ValidatePlan builds the validation chain over input.
func ValidatePlan(input stream.Iterator, index string, opts ValidateOpts) (pipeline.Plan, error) {
	args := []string{"-v", "-r", "-T", itoa(maxInt(opts.Threads, 1))}
	if opts.Score != "" {
		args = append(args, "-s", opts.Score)
	}
	if opts.Filter != "" {
		args = append(args, "-f", opts.Filter)
	}
	return map2mapPlan("gem-validate", input, index, args...)
}

// Validate validates the alignments of the mapped reads of input.
func (t *Tools) Validate(ctx context.Context, input stream.Iterator, index, output string, opts ValidateOpts) (*stream.Stream, error) {
	plan, err := ValidatePlan(input, index, opts)
	if err != nil {
		closeInput(input)
		return nil, err
	}
	return t.run(ctx, plan, output)
}

// DefaultScoring is the default scoring scheme of Score.
const DefaultScoring = "+U,+u,-s,-t,+1,-i,-a"

// ScorePlan builds the scoring chain over input. An empty scoring means
// DefaultScoring; filter is passed to -f unless empty.
func ScorePlan(input stream.Iterator, index, scoring, filter string, threads int) (pipeline.Plan, error) {
	if scoring == "" {
		scoring = DefaultScoring
	}
	args := []string{"-s", scoring, "-T", itoa(threads)}
	if filter != "" {
		args = append(args, "-f", filter)
	}
	return map2mapPlan("gem-score", input, index, args...)
}

// Score scores the alignments of the mapped reads of input.
func (t *Tools) Score(ctx context.Context, input stream.Iterator, index, output, scoring, filter string, threads int) (*stream.Stream, error) {
	plan, err := ScorePlan(input, index, scoring, filter, threads)
	if err != nil {
		closeInput(input)
		return nil, err
	}
	return t.run(ctx, plan, output)
}

// ValidateAndScoreOpts configures ValidateAndScore.
type ValidateAndScoreOpts struct {
	Scoring        string
	ValidateScore  string
	ValidateFilter string
	Threads        int
}

// DefaultValidateAndScoreOpts are the default options of ValidateAndScore.
var DefaultValidateAndScoreOpts = ValidateAndScoreOpts{
	Scoring:        "+U,+u,-t,-s,-i,-a",
	ValidateScore:  "-s,-b,-i",
	ValidateFilter: "2,25",
	Threads:        1,
}

// ValidateAndScore validates the reads of input and scores the result.
// The two steps run concurrently and split the threads.
func (t *Tools) ValidateAndScore(ctx context.Context, input stream.Iterator, index, output string, opts ValidateAndScoreOpts) (*stream.Stream, error) {
	threads := maxInt(opts.Threads/2, 1)
	validated, err := t.Validate(ctx, input, index, "", ValidateOpts{Score: opts.ValidateScore, Filter: opts.ValidateFilter, Threads: threads})
	if err != nil {
		return nil, err
	}
	return t.Score(ctx, validated, index, output, opts.Scoring, "", threads)
}

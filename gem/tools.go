package gem

import (
	"context"

	"github.com/grailbio/gemtools/pipeline"
	"github.com/grailbio/gemtools/stream"
)

// Tools runs GEM tool chains.
type Tools struct {
	Config pipeline.Config
}

// New creates a Tools value with the given configuration.
func New(cfg pipeline.Config) *Tools {
	return &Tools{Config: cfg}
}

// run runs the plan. An empty output streams the result.
func (t *Tools) run(ctx context.Context, plan pipeline.Plan, output string) (*stream.Stream, error) {
	plan.Output = output
	return pipeline.Run(ctx, t.Config, plan)
}

// wait runs a plan whose tools write their own output files. Whatever the
// chain prints on standard output is discarded.
func (t *Tools) wait(ctx context.Context, plan pipeline.Plan) error {
	s, err := pipeline.Run(ctx, t.Config, plan)
	if err != nil {
		return err
	}
	return s.Close()
}

func closeInput(input stream.Iterator) {
	if input != nil {
		input.Close() // nolint: errcheck
	}
}

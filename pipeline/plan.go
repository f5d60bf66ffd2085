package pipeline

import (
	"io"
	"strings"

	"github.com/grailbio/gemtools/stream"
)

// InputPlaceholder is replaced in stage arguments by the path of the
// serialized input when Plan.InputFile is set.
const InputPlaceholder = "{input}"

// Stage is one step of a chain.
type Stage struct {
	// Name labels the stage in logs and errors. Defaults to Args[0].
	Name string
	// Args is the command line. Args[0] is a logical executable name
	// resolved through Config.Resolver.
	Args []string
	// Filter, if set, runs the stage in process instead of executing Args.
	Filter Filter
}

func (s Stage) name() string {
	if s.Name != "" {
		return s.Name
	}
	if len(s.Args) > 0 {
		return s.Args[0]
	}
	return "filter"
}

// Command returns a stage that runs the named executable with args.
func Command(name string, args ...string) Stage {
	return Stage{Args: append([]string{name}, args...)}
}

// Plan describes one chain of stages.
type Plan struct {
	// Name labels the chain, e.g. "mapper".
	Name   string
	Stages []Stage
	// Input is serialized through Transform into the first stage. Run
	// takes ownership of Input and closes it.
	Input stream.Iterator
	// RawInput is copied unchanged into the first stage. At most one of
	// Input and RawInput may be set.
	RawInput io.Reader
	// Transform serializes Input. Defaults to Raw.
	Transform Transform
	// Passthrough copies the undecoded bytes of Input, which must be a
	// stream.RawSource, instead of serializing its reads.
	Passthrough bool
	// InputFile causes the input to be written to a temporary file whose
	// path replaces InputPlaceholder in the stage arguments. The first
	// stage then reads no standard input.
	InputFile bool
	// Output, if set, is the file the last stage writes to. Run waits for
	// the chain and returns a stream over the file.
	Output string
	// TempOutput causes the last stage to write to a temporary file that
	// is removed when the returned stream is exhausted or closed. It is
	// ignored if Output is set.
	TempOutput bool
	// OutputType and Quality describe the records of the output.
	OutputType stream.Type
	Quality    string
}

// String returns the chain as a shell-like command line.
func (p Plan) String() string {
	parts := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		if s.Filter != nil {
			parts[i] = "<" + s.name() + ">"
			continue
		}
		parts[i] = strings.Join(s.Args, " ")
	}
	return strings.Join(parts, " | ")
}

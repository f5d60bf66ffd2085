package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/gemtools/gem"
	"github.com/grailbio/gemtools/pipeline"
	"github.com/grailbio/gemtools/stream"
	"v.io/x/lib/cmdline"
)

type mapFlags struct {
	index         string
	output        string
	bundled       string
	quality       string
	mismatches    float64
	delta         int
	threads       int
	uniquePairing bool
	trimQualities bool
	extra         string
}

func newCmdMap() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "map",
		Short:    "Map reads with gem-mapper",
		ArgsName: "input",
	}
	flags := mapFlags{
		quality:    gem.DefaultMapperOpts.Quality,
		mismatches: gem.DefaultMapperOpts.Mismatches,
		threads:    gem.DefaultMapperOpts.Threads,
	}
	cmd.Flags.StringVar(&flags.index, "index", "", "GEM index, with or without the .gem extension")
	cmd.Flags.StringVar(&flags.output, "output", "", "Output map file. Standard output if empty")
	cmd.Flags.StringVar(&flags.bundled, "bundled", "", "Directory searched for GEM executables after $GEM_PATH")
	cmd.Flags.StringVar(&flags.quality, "quality", flags.quality, `Quality encoding: "offset-33", "offset-64", "33", "64" or "ignore"`)
	cmd.Flags.Float64Var(&flags.mismatches, "mismatches", flags.mismatches, "Number, or fraction of the read length, of allowed mismatches")
	cmd.Flags.IntVar(&flags.delta, "delta", 0, "Number of strata searched after the best one")
	cmd.Flags.IntVar(&flags.threads, "threads", flags.threads, "Mapper threads")
	cmd.Flags.BoolVar(&flags.uniquePairing, "unique-pairing", false, "Pass --unique-pairing to the mapper")
	cmd.Flags.BoolVar(&flags.trimQualities, "trim-qualities", false, "Pad or cut qualities whose length differs from the sequence")
	cmd.Flags.StringVar(&flags.extra, "extra", "", "Space separated extra mapper arguments")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("map takes one input path, but got %v", argv)
		}
		return mapReads(context.Background(), flags, argv[0])
	})
	return cmd
}

func mapReads(ctx context.Context, flags mapFlags, input string) error {
	cfg := pipeline.DefaultConfig()
	cfg.Resolver = pipeline.DefaultResolver(flags.bundled)
	cfg.TrimQualities = flags.trimQualities
	in, err := stream.Open(input, stream.Opts{Quality: flags.quality})
	if err != nil {
		return err
	}
	opts := gem.DefaultMapperOpts
	opts.Quality = flags.quality
	opts.Mismatches = flags.mismatches
	opts.Delta = flags.delta
	opts.Threads = flags.threads
	opts.UniquePairing = flags.uniquePairing
	opts.Extra = gem.ExtraArgs(flags.extra)
	out, err := gem.New(cfg).Mapper(ctx, in, flags.index, flags.output, opts)
	if err != nil {
		return err
	}
	if flags.output != "" {
		return out.Close()
	}
	r, err := out.Raw()
	if err != nil {
		out.Close() // nolint: errcheck
		return err
	}
	if _, err := io.Copy(os.Stdout, r); err != nil {
		out.Cancel()
		return err
	}
	return out.Close()
}

package main

import (
	"fmt"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gemtools/merge"
	"github.com/grailbio/gemtools/stream"
	"v.io/x/lib/cmdline"
)

type mergeFlags struct {
	exclusive bool
	strict    bool
	output    string
}

func newCmdMerge() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "merge",
		Short:    "Merge GEM map files",
		ArgsName: "target source...",
	}
	var flags mergeFlags
	cmd.Flags.BoolVar(&flags.exclusive, "exclusive", false, "Take a read from the first source that maps it better than the target instead of merging the mappings")
	cmd.Flags.BoolVar(&flags.strict, "strict", false, "Fail if a source lists reads in a different order than the target")
	cmd.Flags.StringVar(&flags.output, "output", "", "Output file. Standard output if empty. A .gz suffix compresses the output")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 2 {
			return fmt.Errorf("merge takes a target and at least one source, but got %v", argv)
		}
		return mergeFiles(flags, argv[0], argv[1:])
	})
	return cmd
}

func mergeFiles(flags mergeFlags, target string, sources []string) error {
	t, err := stream.Open(target, stream.Opts{Type: stream.Map})
	if err != nil {
		return err
	}
	srcs := make([]stream.Iterator, 0, len(sources))
	for _, path := range sources {
		s, err := stream.Open(path, stream.Opts{Type: stream.Map})
		if err != nil {
			t.Close() // nolint: errcheck
			for _, s := range srcs {
				s.Close() // nolint: errcheck
			}
			return err
		}
		srcs = append(srcs, s)
	}
	m := merge.New(t, srcs, merge.Opts{Exclusive: flags.exclusive, Strict: flags.strict})
	if flags.output == "" {
		n, err := m.WriteTo(os.Stdout)
		log.Debug.Printf("merge: wrote %d bytes", n)
		return err
	}
	out, err := m.MergeToFile(flags.output)
	if err != nil {
		return err
	}
	log.Printf("merge: merged %d sources into %s", len(sources), flags.output)
	return out.Close()
}

package main

import (
	"io"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/gemtools/gem"
	"github.com/grailbio/gemtools/pipeline"
	"v.io/x/lib/cmdline"
)

func newCmdExecutables() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "executables",
		Short: "Show where the GEM executables are found",
	}
	bundled := cmd.Flags.String("bundled", "", "Directory searched for GEM executables after $GEM_PATH")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return executables(os.Stdout, pipeline.DefaultResolver(*bundled))
	})
	return cmd
}

// executables writes one line per GEM executable: its name, path and the
// place it was found in, or the resolution error. It fails if any
// executable is missing.
func executables(w io.Writer, resolver pipeline.Resolver) error {
	res, err := resolver.Validate(gem.Executables...)
	tw := tsv.NewWriter(w)
	for _, r := range res {
		tw.WriteString(r.Name)
		if r.Err != nil {
			tw.WriteString("-")
			tw.WriteString(r.Err.Error())
		} else {
			tw.WriteString(r.Path)
			tw.WriteString(r.Locator)
		}
		if e := tw.EndLine(); e != nil {
			return e
		}
	}
	if e := tw.Flush(); e != nil {
		return e
	}
	return err
}

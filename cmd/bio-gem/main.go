package main

import (
	"github.com/grailbio/base/grail"
	"v.io/x/lib/cmdline"
)

func main() {
	shutdown := grail.Init()
	defer shutdown()
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:     "bio-gem",
		Short:    "Run GEM mapping tools and merge their output",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdMerge(),
			newCmdExport(),
			newCmdMap(),
			newCmdExecutables(),
		},
	})
}

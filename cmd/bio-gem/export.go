package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gemtools/encoding/fastq"
	"github.com/grailbio/gemtools/encoding/gemmap"
	"github.com/grailbio/gemtools/pipeline"
	"github.com/grailbio/gemtools/stream"
	"v.io/x/lib/cmdline"
)

type exportFlags struct {
	format        string
	trimQualities bool
	untrim        bool
	output        string
}

func newCmdExport() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "export",
		Short:    "Write the reads of a map or sequence file as FASTA or FASTQ",
		ArgsName: "input",
	}
	var flags exportFlags
	cmd.Flags.StringVar(&flags.format, "format", "", `Output format, "fasta" or "fastq". By default reads with qualities are written as FASTQ and the others as FASTA`)
	cmd.Flags.BoolVar(&flags.trimQualities, "trim-qualities", false, "Pad or cut qualities whose length differs from the sequence")
	cmd.Flags.BoolVar(&flags.untrim, "untrim", false, "Remove the #T<left>,<right> label of trimmed reads from the read ids")
	cmd.Flags.StringVar(&flags.output, "output", "", "Output file. Standard output if empty")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("export takes one input path, but got %v", argv)
		}
		return exportFile(flags, argv[0])
	})
	return cmd
}

func exportFile(flags exportFlags, path string) (err error) {
	var format *fastq.Format
	switch flags.format {
	case "":
	case "fasta":
		f := fastq.FASTA
		format = &f
	case "fastq":
		f := fastq.FASTQ
		format = &f
	default:
		return fmt.Errorf("unknown export format %q", flags.format)
	}
	s, err := stream.Open(path)
	if err != nil {
		return err
	}
	var in stream.Iterator = s
	if flags.untrim {
		in = pipeline.Untrim(in)
	}
	defer func() {
		if e := in.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if flags.output == "" {
		return export(os.Stdout, in, format, flags.trimQualities)
	}
	ctx := vcontext.Background()
	out, err := file.Create(ctx, flags.output)
	if err != nil {
		return err
	}
	err = export(out.Writer(ctx), in, format, flags.trimQualities)
	if e := out.Close(ctx); e != nil && err == nil {
		err = e
	}
	return err
}

// export writes the reads of in to w. A nil format picks the format per
// read.
func export(w io.Writer, in stream.Iterator, format *fastq.Format, trimQualities bool) error {
	bw := bufio.NewWriter(w)
	for in.Scan() {
		r := in.Record()
		f := r.DefaultFormat()
		if format != nil {
			f = *format
		}
		if err := gemmap.WriteSequence(bw, r, f, trimQualities); err != nil {
			return err
		}
	}
	if err := in.Err(); err != nil {
		return err
	}
	return bw.Flush()
}

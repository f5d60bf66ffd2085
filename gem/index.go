package gem

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gemtools/pipeline"
)

// Index runs gem-indexer on the FASTA file input and returns the absolute
// path of the index. The .gem extension is added to output if missing. An
// existing index is not rebuilt.
func (t *Tools) Index(ctx context.Context, input, output, content string, threads int) (string, error) {
	if content == "" {
		content = "dna"
	}
	if _, err := os.Stat(input); err != nil {
		return "", errors.E(errors.NotExist, err, "gem: indexer input not found:", input)
	}
	prefix := strings.TrimSuffix(output, indexExtension)
	index, err := filepath.Abs(prefix + indexExtension)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(index); err == nil {
		log.Printf("gem: index %s already exists, skipping indexing", index)
		return index, nil
	}
	indexer, err := t.Config.Resolver.Resolve("gem-indexer")
	if err != nil {
		return "", err
	}
	// The indexer runs its helper tools from $PATH.
	cfg := t.Config.WithEnv("PATH=" + filepath.Dir(indexer) + string(os.PathListSeparator) + os.Getenv("PATH"))
	err = (&Tools{Config: cfg}).wait(ctx, pipeline.Plan{
		Name: "gem-indexer",
		Stages: []pipeline.Stage{pipeline.Command(indexer,
			"-T", itoa(threads),
			"--content-type", strings.ToLower(content),
			"-i", input,
			"-o", prefix)},
	})
	if err != nil {
		return "", err
	}
	return index, nil
}

// Hash runs gem-retriever to build the hashed genome output from the FASTA
// file input, and returns the absolute path of output.
func (t *Tools) Hash(ctx context.Context, input, output string) (string, error) {
	err := t.wait(ctx, pipeline.Plan{
		Name:   "gem-retriever",
		Stages: []pipeline.Stage{pipeline.Command("gem-retriever", "hash", input, output)},
	})
	if err != nil {
		return "", err
	}
	return filepath.Abs(output)
}

// ComputeTranscriptome builds a transcriptome from the junctions file. If
// subtract is set, its junctions are excluded. It returns the absolute
// paths of the transcriptome FASTA file and of the key file that maps
// transcriptome coordinates back to the genome.
func (t *Tools) ComputeTranscriptome(ctx context.Context, maxReadLength int, index, junctions, subtract string) (fasta, keys string, err error) {
	args := []string{itoa(maxReadLength), index, junctions}
	if subtract != "" {
		args = append(args, subtract)
	}
	err = t.wait(ctx, pipeline.Plan{
		Name:   "compute-transcriptome",
		Stages: []pipeline.Stage{pipeline.Command("compute-transcriptome", args...)},
	})
	if err != nil {
		return "", "", err
	}
	if fasta, err = filepath.Abs(junctions + ".fa"); err != nil {
		return "", "", err
	}
	if keys, err = filepath.Abs(junctions + ".keys"); err != nil {
		return "", "", err
	}
	return fasta, keys, nil
}

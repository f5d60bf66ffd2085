package main

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/gemtools/encoding/fastq"
	"github.com/grailbio/gemtools/gem"
	"github.com/grailbio/gemtools/pipeline"
	"github.com/grailbio/gemtools/stream"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, path string, lines ...string) {
	require.NoError(t, ioutil.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
}

func readFile(t *testing.T, path string) string {
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestMergeFiles(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	target := filepath.Join(dir, "target.map")
	source := filepath.Join(dir, "source.map")
	writeLines(t, target, "r1\tACGT\t-\t-", "r2\tACGT\t0:1\tchr1:+:5:4")
	writeLines(t, source, "r1\tACGT\t1\tchr2:-:7:A3", "r2\tACGT\t-\t-")

	output := filepath.Join(dir, "merged.map")
	require.NoError(t, mergeFiles(mergeFlags{output: output}, target, []string{source}))
	expect.EQ(t, readFile(t, output), "r1\tACGT\t1\tchr2:-:7:A3\nr2\tACGT\t0:1\tchr1:+:5:4\n")

	require.Error(t, mergeFiles(mergeFlags{output: output}, target, []string{filepath.Join(dir, "missing.map")}))
}

func TestExport(t *testing.T) {
	in := func() stream.Iterator {
		return stream.NewReader(strings.NewReader("r1\tACGT\tIIII\t-\t-\nr2\tAC\t-\t-\n"))
	}
	var buf bytes.Buffer
	require.NoError(t, export(&buf, in(), nil, false))
	expect.EQ(t, buf.String(), "@r1\nACGT\n+\nIIII\n>r2\nAC\n")

	buf.Reset()
	fasta := fastq.FASTA
	require.NoError(t, export(&buf, in(), &fasta, false))
	expect.EQ(t, buf.String(), ">r1\nACGT\n>r2\nAC\n")
}

func TestExportFile(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	input := filepath.Join(dir, "in.map")
	writeLines(t, input, "r1\tACGT\t-\t-")
	output := filepath.Join(dir, "out.fastq")
	require.NoError(t, exportFile(exportFlags{format: "fastq", output: output}, input))
	expect.EQ(t, readFile(t, output), "@r1\nACGT\n+\n[[[[\n")

	assert.Error(t, exportFile(exportFlags{format: "sam"}, input))

	writeLines(t, input, "r1#T2,0\tGT\tII\t0:1\tchr1:+:3:2", "r2\tACGT\t-\t-")
	output = filepath.Join(dir, "out.fa")
	require.NoError(t, exportFile(exportFlags{untrim: true, output: output}, input))
	expect.EQ(t, readFile(t, output), "@r1\nGT\n+\nII\n>r2\nACGT\n")
}

func TestExecutables(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	mapper := filepath.Join(dir, "gem-mapper")
	require.NoError(t, ioutil.WriteFile(mapper, []byte("#!/bin/sh\n"), 0755))

	var buf bytes.Buffer
	err := executables(&buf, pipeline.Resolver{Locators: []pipeline.Locator{pipeline.Dir(dir)}})
	require.Error(t, err)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, len(gem.Executables))
	expect.EQ(t, lines[1], "gem-mapper\t"+mapper+"\t"+dir)
	assert.True(t, strings.HasPrefix(lines[0], "gem-indexer\t-\t"), lines[0])
}

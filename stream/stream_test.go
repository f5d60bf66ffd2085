package stream_test

import (
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/snappy"
	"github.com/grailbio/gemtools/encoding/gemmap"
	"github.com/grailbio/gemtools/stream"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mapData = "r1\tACGT\t0:1\tchr1:+:10:4\n" +
	"r2\tACGT\tIIII\t0:0\t-\n" +
	"r3\tAC\tII\t-\t-\n"

func writeFile(t *testing.T, path, data string) {
	require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
}

func ids(t *testing.T, it stream.Iterator) []string {
	var out []string
	for it.Scan() {
		out = append(out, it.Record().ID)
	}
	require.NoError(t, it.Close())
	return out
}

func TestOpenMap(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "a.map")
	writeFile(t, path, mapData)

	s, err := stream.Open(path)
	require.NoError(t, err)
	expect.EQ(t, s.Info().Type, stream.Map)
	expect.EQ(t, s.Info().Path, path)
	require.True(t, s.Scan())
	expect.EQ(t, s.Record().Line, "r1\tACGT\t0:1\tchr1:+:10:4")
	expect.EQ(t, ids(t, s), []string{"r2", "r3"})
	// Close is idempotent.
	assert.NoError(t, s.Close())
}

func TestOpenCompressed(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	gzPath := filepath.Join(tempDir, "a.map.gz")
	f, err := os.Create(gzPath)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(mapData))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	szPath := filepath.Join(tempDir, "a.map.sz")
	f, err = os.Create(szPath)
	require.NoError(t, err)
	sz := snappy.NewBufferedWriter(f)
	_, err = sz.Write([]byte(mapData))
	require.NoError(t, err)
	require.NoError(t, sz.Close())
	require.NoError(t, f.Close())

	for _, path := range []string{gzPath, szPath} {
		s, err := stream.Open(path)
		require.NoError(t, err, path)
		expect.EQ(t, s.Info().Type, stream.Map)
		expect.EQ(t, ids(t, s), []string{"r1", "r2", "r3"})
	}
}

func TestOpenSequence(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "a.fastq")
	writeFile(t, path, "@q1 1:N\nACGT\n+\nIIII\n>f1\nAC\nGT\n")

	s, err := stream.Open(path)
	require.NoError(t, err)
	expect.EQ(t, s.Info().Type, stream.Sequence)
	require.True(t, s.Scan())
	expect.EQ(t, s.Record().Line, "q1 1:N\tACGT\tIIII\t-\t-")
	require.True(t, s.Scan())
	expect.EQ(t, s.Record().Line, "f1\tACGT\t-\t-")
	assert.False(t, s.Scan())
	assert.NoError(t, s.Close())
}

func TestOpenUnknownType(t *testing.T) {
	_, err := stream.Open("/nonexistent/reads.txt")
	assert.Error(t, err)
	_, err = stream.Open("/nonexistent/reads.map")
	assert.Error(t, err)
}

func TestGuessType(t *testing.T) {
	for _, test := range []struct {
		path string
		want stream.Type
	}{
		{"a.map", stream.Map},
		{"a.map.gz", stream.Map},
		{"a.fastq.sz", stream.Sequence},
		{"a.fa", stream.Sequence},
		{"dir.x/a.bam", stream.BAM},
		{"a.sam", stream.SAM},
		{"a", stream.Unknown},
		{"a.txt", stream.Unknown},
	} {
		expect.EQ(t, stream.GuessType(test.path), test.want, test.path)
	}
}

func TestFormatError(t *testing.T) {
	s := stream.NewReader(strings.NewReader("r1\tACGT\t0:1\tm\nbad\n"))
	require.True(t, s.Scan())
	assert.False(t, s.Scan())
	err := s.Close()
	var fe *gemmap.FormatError
	require.True(t, errors.As(err, &fe), "%v", err)
	expect.EQ(t, fe.Line, "bad")
}

func TestClone(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "a.map")
	writeFile(t, path, mapData)

	s, err := stream.Open(path)
	require.NoError(t, err)
	c, err := s.Clone()
	require.NoError(t, err)
	// Interleave the two cursors.
	var got1, got2 []string
	for s.Scan() {
		got1 = append(got1, s.Record().ID)
		require.True(t, c.Scan())
		got2 = append(got2, c.Record().ID)
	}
	assert.False(t, c.Scan())
	require.NoError(t, s.Close())
	require.NoError(t, c.Close())
	expect.EQ(t, got1, []string{"r1", "r2", "r3"})
	expect.EQ(t, got2, got1)

	_, err = stream.NewReader(strings.NewReader(mapData)).Clone()
	var nc *stream.NotCloneableError
	assert.True(t, errors.As(err, &nc))
}

func TestRemoveOnClose(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	// Exhaustion removes the file.
	path := filepath.Join(tempDir, "a.map")
	writeFile(t, path, mapData)
	s, err := stream.Open(path, stream.Opts{RemoveOnClose: true})
	require.NoError(t, err)
	c, err := s.Clone()
	require.NoError(t, err)
	expect.EQ(t, len(ids(t, c)), 3)
	_, err = os.Stat(path)
	require.NoError(t, err)
	for s.Scan() {
	}
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%v", err)
	assert.NoError(t, s.Close())

	// So does closing early.
	path = filepath.Join(tempDir, "b.map")
	writeFile(t, path, mapData)
	s, err = stream.Open(path, stream.Opts{RemoveOnClose: true})
	require.NoError(t, err)
	require.True(t, s.Scan())
	assert.NoError(t, s.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%v", err)
}

type fakeProcess struct {
	err        error
	waits      int
	terminated bool
}

func (p *fakeProcess) Wait() error {
	p.waits++
	if p.terminated {
		return errors.New("killed")
	}
	return p.err
}

func (p *fakeProcess) Terminate() { p.terminated = true }

type trackingReader struct {
	io.Reader
	closed bool
}

func (r *trackingReader) Close() error {
	r.closed = true
	return nil
}

func TestProcess(t *testing.T) {
	out := &trackingReader{Reader: strings.NewReader(mapData)}
	proc := &fakeProcess{}
	s := stream.NewProcess(out, proc)
	expect.EQ(t, ids(t, s), []string{"r1", "r2", "r3"})
	expect.EQ(t, proc.waits, 1)
	assert.True(t, out.closed)

	_, err := s.Clone()
	var nc *stream.NotCloneableError
	require.True(t, errors.As(err, &nc))
	expect.EQ(t, nc.Source, "process output")
}

func TestProcessFailure(t *testing.T) {
	out := &trackingReader{Reader: strings.NewReader(mapData)}
	proc := &fakeProcess{err: errors.New("exit status 2")}
	s := stream.NewProcess(out, proc)
	for s.Scan() {
	}
	assert.EqualError(t, s.Err(), "exit status 2")
	assert.EqualError(t, s.Close(), "exit status 2")
	expect.EQ(t, proc.waits, 1)
}

func TestProcessCloseDrains(t *testing.T) {
	r := strings.NewReader(mapData)
	proc := &fakeProcess{}
	s := stream.NewProcess(&trackingReader{Reader: r}, proc)
	require.True(t, s.Scan())
	require.NoError(t, s.Close())
	expect.EQ(t, r.Len(), 0)
	expect.EQ(t, proc.waits, 1)
}

func TestProcessCancel(t *testing.T) {
	out := &trackingReader{Reader: strings.NewReader(mapData)}
	proc := &fakeProcess{}
	s := stream.NewProcess(out, proc)
	require.True(t, s.Scan())
	s.Cancel()
	assert.True(t, proc.terminated)
	assert.True(t, out.closed)
	assert.NoError(t, s.Close())
	assert.False(t, s.Scan())
}

func TestRaw(t *testing.T) {
	s := stream.NewReader(strings.NewReader(mapData))
	r, err := s.Raw()
	require.NoError(t, err)
	data, err := ioutil.ReadAll(r)
	require.NoError(t, err)
	expect.EQ(t, string(data), mapData)
	assert.False(t, s.Scan())
	assert.Error(t, s.Close())
}

func TestFromReadsAndFilter(t *testing.T) {
	var reads []*gemmap.Read
	for _, line := range strings.Split(strings.TrimSpace(mapData), "\n") {
		r, err := gemmap.Decode(line)
		require.NoError(t, err)
		reads = append(reads, r)
	}
	it := stream.FromReads(reads, stream.Info{})
	expect.EQ(t, it.Info().Type, stream.Map)
	c, err := it.Clone()
	require.NoError(t, err)
	expect.EQ(t, ids(t, it), []string{"r1", "r2", "r3"})

	// r1 maps with one mismatch; r2 has only zero counts; r3 was not mapped.
	f := stream.Filter(c, stream.Unmapped)
	fc, err := f.Clone()
	require.NoError(t, err)
	expect.EQ(t, ids(t, f), []string{"r2", "r3"})
	expect.EQ(t, ids(t, fc), []string{"r2", "r3"})

	bad := stream.Filter(stream.FromReads([]*gemmap.Read{{ID: "x", Summary: "0:a"}}, stream.Info{}), stream.Unmapped)
	assert.False(t, bad.Scan())
	assert.Error(t, bad.Err())
	assert.Error(t, bad.Close())
}

func TestInterleave(t *testing.T) {
	first := stream.NewReader(strings.NewReader("@p/1\nACGT\n+\nIIII\n@q/1\nAA\n+\nII\n"), stream.Opts{Type: stream.Sequence})
	second := stream.NewReader(strings.NewReader("@p/2\nTTG\n+\nHHH\n@q/2\nCC\n+\nHH\n"), stream.Opts{Type: stream.Sequence})
	it := stream.Interleave(first, second)
	require.True(t, it.Scan())
	expect.EQ(t, it.Record().Line, "p\tACGT TTG\tIIII HHH\t-\t-")
	assert.True(t, it.Record().Paired())
	require.True(t, it.Scan())
	expect.EQ(t, it.Record().ID, "q")
	assert.False(t, it.Scan())
	assert.NoError(t, it.Close())

	short := stream.Interleave(
		stream.NewReader(strings.NewReader("@p/1\nACGT\n+\nIIII\n"), stream.Opts{Type: stream.Sequence}),
		stream.NewReader(strings.NewReader(""), stream.Opts{Type: stream.Sequence}))
	assert.False(t, short.Scan())
	assert.Error(t, short.Close())
}

func TestSAMReader(t *testing.T) {
	const samData = "@HD\tVN:1.5\n@SQ\tSN:chr1\tLN:100\n" +
		"r1\t0\tchr1\t10\t60\t4M\t*\t0\t0\tACGT\tIIII\n"
	s := stream.NewReader(strings.NewReader(samData), stream.Opts{Type: stream.SAM})
	r, err := stream.SAMReader(s)
	require.NoError(t, err)
	expect.EQ(t, len(r.Header().Refs()), 1)
	rec, err := r.Read()
	require.NoError(t, err)
	expect.EQ(t, rec.Name, "r1")
	expect.EQ(t, rec.Pos, 9)
	_, err = r.Read()
	expect.EQ(t, err, io.EOF)
	assert.NoError(t, s.Close())

	_, err = stream.SAMReader(stream.NewReader(strings.NewReader(mapData)))
	assert.Error(t, err)
}

package gemmap_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/grailbio/gemtools/encoding/fastq"
	"github.com/grailbio/gemtools/encoding/gemmap"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wellFormed = []string{
	"r1\tACGT\t0:1\tchr1:+:10:4,chr2:-:20:1A2",
	"r2\tACGT\tIIII\t-\t-",
	"r3\tACGT TTGG\tIIII HHHH\t0+1:2\tchr1:+:10:4::chr1:-:200:4",
	"r4\tACGT\t!\t-",
	"r5 1:N:0:ATCACG\tACGT\t0:0:0\t-",
}

func TestRoundTrip(t *testing.T) {
	for _, line := range wellFormed {
		r, err := gemmap.Decode(line)
		require.NoError(t, err, line)
		assert.Equal(t, line, gemmap.Encode(r))
		r2, err := gemmap.Decode(gemmap.Encode(r))
		require.NoError(t, err)
		assert.Equal(t, *r, *r2)
	}
}

func TestDecodeFields(t *testing.T) {
	r, err := gemmap.Decode("r3\tACGT TTGG\tIIII HHHH\t0+1:2\tm1,m2")
	require.NoError(t, err)
	expect.EQ(t, r.ID, "r3")
	expect.EQ(t, r.Seq, "ACGT TTGG")
	expect.EQ(t, r.Qual, "IIII HHHH")
	expect.EQ(t, r.Summary, "0+1:2")
	expect.EQ(t, r.Mappings, "m1,m2")
	expect.True(t, r.Paired())
	expect.EQ(t, r.Length(), 4)
}

func TestDecodeErrors(t *testing.T) {
	for _, line := range []string{
		"r1\tACGT\t0",
		"r1\tACGT\tIIII\t0\tm\textra",
		"r1\tACGT\t0:x\tm",
		"r1\tACGT\t0::1\tm",
		"r1\tACGT\t:1\tm",
		"\tACGT\t0\t-",
		"r1\tACGT\t-\tchr1:+:1:4",
	} {
		_, err := gemmap.Decode(line)
		var fe *gemmap.FormatError
		require.True(t, errors.As(err, &fe), "line %q: %v", line, err)
		assert.Equal(t, line, fe.Line)
	}
}

func TestMinMismatches(t *testing.T) {
	for _, test := range []struct {
		summary string
		want    int
	}{
		{"-", -1},
		{"*", -1},
		{"+", -1},
		{"!", -1},
		{"", -1},
		{"0", -1},
		{"0:0:0", -1},
		{"0:0:2", 2},
		{"1", 0},
		{"0+0:3", 2},
		{"0:1+5", 1},
	} {
		got, err := gemmap.MinMismatches(&gemmap.Read{Summary: test.summary})
		require.NoError(t, err)
		assert.Equal(t, test.want, got, "summary %q", test.summary)
	}
}

func TestMinMismatchesMalformed(t *testing.T) {
	r := &gemmap.Read{ID: "x", Summary: "0:a", Line: "x\tA\t0:a\t-"}
	_, err := gemmap.MinMismatches(r)
	var fe *gemmap.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, r.Line, fe.Line)

	n, err := gemmap.LineMinMismatches("x\tACGT\tIIII\t0:0:1\tm")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = gemmap.LineMinMismatches("x\tACGT\t+\t-")
	require.NoError(t, err)
	assert.Equal(t, -1, n)
	_, err = gemmap.LineMinMismatches("x")
	assert.Error(t, err)
}

func TestMaps(t *testing.T) {
	r, err := gemmap.Decode("r1\tACGT\t0:2\ta,b")
	require.NoError(t, err)
	counts, maps, err := r.Maps()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, counts)
	assert.Equal(t, []string{"a", "b"}, maps)

	counts, maps, err = (&gemmap.Read{Summary: "!"}).Maps()
	require.NoError(t, err)
	assert.Equal(t, []int{gemmap.MaxMappings}, counts)
	assert.Equal(t, []string{"-"}, maps)

	counts, _, err = (&gemmap.Read{Summary: "*"}).Maps()
	require.NoError(t, err)
	assert.Equal(t, []int{0}, counts)
}

func TestMapLine(t *testing.T) {
	r := &gemmap.Read{ID: "r", Seq: "AC", Summary: "999999999", Mappings: "-"}
	assert.Equal(t, "r\tAC\t0\t-", r.MapLine(true))
	assert.Equal(t, "r\tAC\t999999999\t-", r.MapLine(false))
	assert.Equal(t, "999999999", r.Summary)
}

func TestFill(t *testing.T) {
	a, err := gemmap.Decode(wellFormed[0])
	require.NoError(t, err)
	var b gemmap.Read
	b.Fill(a)
	assert.Equal(t, *a, b)
	b.ID = "other"
	assert.Equal(t, "r1", a.ID)
}

func TestExportFASTQFabricatesQualities(t *testing.T) {
	r := &gemmap.Read{ID: "r1", Seq: "ACGTA", Summary: "-", Mappings: "-"}
	e, err := r.SequenceEntries(fastq.FASTQ, false)
	require.NoError(t, err)
	require.Len(t, e, 1)
	assert.Equal(t, fastq.Read{ID: "@r1", Seq: "ACGTA", Unk: "+", Qual: "[[[[["}, e[0])
}

func TestExportLengthMismatch(t *testing.T) {
	r := &gemmap.Read{ID: "r1", Seq: "ACGTA", Qual: "II", Summary: "-", Mappings: "-"}
	_, err := r.SequenceEntries(fastq.FASTQ, false)
	var le *gemmap.LengthMismatchError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "r1", le.ID)

	e, err := r.SequenceEntries(fastq.FASTQ, true)
	require.NoError(t, err)
	assert.Equal(t, "II[[[", e[0].Qual)

	r.Qual = "IIIIIIII"
	e, err = r.SequenceEntries(fastq.FASTQ, true)
	require.NoError(t, err)
	assert.Equal(t, len(r.Seq), len(e[0].Qual))
	assert.Equal(t, "IIIII", e[0].Qual)
}

func TestExportEmptySequence(t *testing.T) {
	r := &gemmap.Read{ID: "r1", Summary: "-", Mappings: "-"}
	for _, format := range []fastq.Format{fastq.FASTA, fastq.FASTQ} {
		_, err := r.SequenceEntries(format, true)
		var le *gemmap.LengthMismatchError
		assert.True(t, errors.As(err, &le), "format %v", format)
	}
}

func TestExportPaired(t *testing.T) {
	r, err := gemmap.Decode("p\tACGT TTG\tIIII HHH\t0\t-")
	require.NoError(t, err)
	var b bytes.Buffer
	require.NoError(t, gemmap.WriteSequence(&b, r, r.DefaultFormat(), false))
	assert.Equal(t, "@p/1\nACGT\n+\nIIII\n@p/2\nTTG\n+\nHHH\n", b.String())

	b.Reset()
	r.Qual = ""
	require.Equal(t, fastq.FASTA, r.DefaultFormat())
	require.NoError(t, gemmap.WriteSequence(&b, r, r.DefaultFormat(), false))
	assert.Equal(t, ">p/1\nACGT\n>p/2\nTTG\n", b.String())
	assert.Equal(t, "p", r.ID)
}

func TestMerge(t *testing.T) {
	a, err := gemmap.Decode("r\tACGT\t0:1:1\tx,y")
	require.NoError(t, err)
	b, err := gemmap.Decode("r\tACGT\t1:1\tz,x")
	require.NoError(t, err)
	require.NoError(t, a.Merge(b))
	assert.Equal(t, "1:1:1", a.Summary)
	assert.Equal(t, "z,x,y", a.Mappings)
	assert.Equal(t, gemmap.Encode(a), a.Line)

	// Duplicates in the same stratum are not counted twice.
	c, err := gemmap.Decode("r\tACGT\t0:1\tx")
	require.NoError(t, err)
	d, err := gemmap.Decode("r\tACGT\t0:2\tx,w")
	require.NoError(t, err)
	require.NoError(t, c.Merge(d))
	assert.Equal(t, "0:2", c.Summary)
	assert.Equal(t, "x,w", c.Mappings)
}

func TestMergeSentinels(t *testing.T) {
	a, err := gemmap.Decode("r\tACGT\t-\t-")
	require.NoError(t, err)
	b, err := gemmap.Decode("r\tACGT\t0:1\tx")
	require.NoError(t, err)
	require.NoError(t, a.Merge(b))
	assert.Equal(t, *b, *a)

	c, err := gemmap.Decode("r\tACGT\t!\t-")
	require.NoError(t, err)
	require.NoError(t, a.Merge(c))
	assert.Equal(t, "0:1", a.Summary)
}

func TestScannerWriter(t *testing.T) {
	in := strings.Join(wellFormed, "\n") + "\n\n"
	s := gemmap.NewScanner(strings.NewReader(in))
	var b bytes.Buffer
	w := gemmap.NewWriter(&b)
	n := 0
	for s.Scan() {
		require.NoError(t, w.Write(s.Read()))
		n++
	}
	require.NoError(t, s.Err())
	require.NoError(t, w.Flush())
	assert.Equal(t, len(wellFormed), n)
	assert.Equal(t, strings.Join(wellFormed, "\n")+"\n", b.String())
}

func TestScannerError(t *testing.T) {
	s := gemmap.NewScanner(strings.NewReader("r1\tA\t0\t-\nbad line\n"))
	require.True(t, s.Scan())
	require.False(t, s.Scan())
	var fe *gemmap.FormatError
	require.True(t, errors.As(s.Err(), &fe))
	assert.Equal(t, "bad line", fe.Line)
	assert.False(t, s.Scan())
}

func TestWriterNoMaxMappings(t *testing.T) {
	var b bytes.Buffer
	w := gemmap.NewWriter(&b)
	w.NoMaxMappings = true
	require.NoError(t, w.Write(&gemmap.Read{ID: "r", Seq: "A", Summary: "999999999", Mappings: "-"}))
	require.NoError(t, w.Flush())
	assert.Equal(t, "r\tA\t0\t-\n", b.String())
}

func TestFromSequence(t *testing.T) {
	r := gemmap.FromSequence(&fastq.Read{ID: "@r1 1:N:0", Seq: "ACG", Unk: "+", Qual: "III"})
	assert.Equal(t, "r1 1:N:0", r.ID)
	assert.Equal(t, "r1 1:N:0\tACG\tIII\t-\t-", r.Line)
	n, err := gemmap.MinMismatches(r)
	require.NoError(t, err)
	assert.Equal(t, -1, n)
}

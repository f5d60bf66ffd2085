package gemmap

import (
	"strings"
)

// Read is one read or read pair together with its mapping information.
// Qual is empty when the read carries no qualities. Line holds the raw
// line the read was decoded from; it is rewritten by Merge.
type Read struct {
	ID       string
	Seq      string
	Qual     string
	Summary  string
	Mappings string
	Line     string
}

// Fill makes r a shallow copy of other.
func (r *Read) Fill(other *Read) {
	*r = *other
}

// Paired reports whether r holds both mates of a pair.
func (r *Read) Paired() bool {
	return strings.IndexByte(r.Seq, ' ') >= 0
}

// Length returns the sequence length of the first mate.
func (r *Read) Length() int {
	if i := strings.IndexByte(r.Seq, ' '); i >= 0 {
		return i
	}
	return len(r.Seq)
}

// Maps returns the per-stratum match counts and the list of mappings.
// A read without matches yields ([0], ["-"]); a read with too many
// matches yields ([MaxMappings], ["-"]).
func (r *Read) Maps() ([]int, []string, error) {
	switch {
	case r.Summary == "" || IsNotFound(r.Summary):
		return []int{0}, []string{NoMappings}, nil
	case IsTooMany(r.Summary):
		return []int{MaxMappings}, []string{NoMappings}, nil
	}
	c, err := parseCounts(r.Summary, r.Line)
	if err != nil {
		return nil, nil, err
	}
	return c.n, strings.Split(r.Mappings, ","), nil
}

// String returns the GEM mapping line of r, without trailing newline.
func (r *Read) String() string {
	return Encode(r)
}

// MapLine is like String, but if noMaxMappings is set and the summary is
// the collapsed "too many" count, the summary is written as "0".
func (r *Read) MapLine(noMaxMappings bool) string {
	if !noMaxMappings || r.Summary != maxMappingsString {
		return Encode(r)
	}
	c := *r
	c.Summary = "0"
	return Encode(&c)
}

// Encode serializes r as a mapping line without trailing newline. The
// qualities column is written only when r has qualities.
func Encode(r *Read) string {
	var b strings.Builder
	b.Grow(len(r.ID) + len(r.Seq) + len(r.Qual) + len(r.Summary) + len(r.Mappings) + 4)
	b.WriteString(r.ID)
	b.WriteByte('\t')
	b.WriteString(r.Seq)
	b.WriteByte('\t')
	if r.Qual != "" {
		b.WriteString(r.Qual)
		b.WriteByte('\t')
	}
	b.WriteString(r.Summary)
	b.WriteByte('\t')
	b.WriteString(r.Mappings)
	return b.String()
}

// Decode parses a mapping line. The line must have four tab separated
// fields, or five when qualities are present, and a well formed summary.
func Decode(line string) (*Read, error) {
	r := &Read{}
	if err := DecodeInto(r, line); err != nil {
		return nil, err
	}
	return r, nil
}

// DecodeInto is like Decode, but fills an existing read.
func DecodeInto(r *Read, line string) error {
	line = strings.TrimSuffix(line, "\r")
	var f [5]string
	n := 0
	rest := line
	for {
		i := strings.IndexByte(rest, '\t')
		if i < 0 {
			if n < len(f) {
				f[n] = rest
			}
			n++
			break
		}
		if n < len(f) {
			f[n] = rest[:i]
		}
		n++
		rest = rest[i+1:]
	}
	switch n {
	case 4:
		*r = Read{ID: f[0], Seq: f[1], Summary: f[2], Mappings: f[3], Line: line}
	case 5:
		*r = Read{ID: f[0], Seq: f[1], Qual: f[2], Summary: f[3], Mappings: f[4], Line: line}
	default:
		return &FormatError{Line: line, Reason: "expected 4 or 5 tab separated fields"}
	}
	if r.ID == "" {
		return &FormatError{Line: line, Reason: "empty read id"}
	}
	if !validSummary(r.Summary) {
		return &FormatError{Line: line, Reason: "malformed summary"}
	}
	if IsSentinel(r.Summary) && r.Mappings != NoMappings {
		return &FormatError{Line: line, Reason: "mappings present for summary " + r.Summary}
	}
	return nil
}

// ID returns the read id of a mapping line without decoding the rest of
// the line.
func ID(line string) string {
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		return line[:i]
	}
	return line
}

// summaryField returns the summary column of a mapping line without
// decoding it. ok is false if the line has fewer than four fields.
func summaryField(line string) (summary string, ok bool) {
	last := strings.LastIndexByte(line, '\t')
	if last <= 0 {
		return "", false
	}
	prev := strings.LastIndexByte(line[:last], '\t')
	if prev < 0 || strings.Count(line[:prev], "\t") < 1 {
		return "", false
	}
	return line[prev+1 : last], true
}

// LineMinMismatches computes MinMismatches directly on a mapping line.
func LineMinMismatches(line string) (int, error) {
	s, ok := summaryField(line)
	if !ok {
		return -1, &FormatError{Line: line, Reason: "expected 4 or 5 tab separated fields"}
	}
	return summaryMinMismatches(s, line)
}

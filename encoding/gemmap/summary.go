package gemmap

import (
	"strconv"
	"strings"
)

// MaxMappings is the match count that stands for "too many matches to
// enumerate".
const MaxMappings = 999999999

// NoMappings is the mappings field of a read without matches.
const NoMappings = "-"

var maxMappingsString = strconv.Itoa(MaxMappings)

// IsNotFound reports whether the summary is one of the sentinels meaning
// that no match was found.
func IsNotFound(summary string) bool {
	return summary == "-" || summary == "*"
}

// IsTooMany reports whether the summary is one of the sentinels meaning
// that there were too many matches to enumerate.
func IsTooMany(summary string) bool {
	return summary == "+" || summary == "!"
}

// IsSentinel reports whether the summary carries no per-stratum counts.
func IsSentinel(summary string) bool {
	return IsNotFound(summary) || IsTooMany(summary)
}

// counts is a parsed summary: one count per flattened stratum, together
// with the separators (':' or '+') found between consecutive entries.
type counts struct {
	n    []int
	seps []byte
}

// parseCounts parses a non-sentinel summary. line is only used to build
// the FormatError.
func parseCounts(summary, line string) (counts, error) {
	var c counts
	start := 0
	for i := 0; i <= len(summary); i++ {
		if i < len(summary) && summary[i] != ':' && summary[i] != '+' {
			continue
		}
		v, err := strconv.Atoi(summary[start:i])
		if err != nil || v < 0 {
			return counts{}, &FormatError{Line: line, Reason: "malformed summary " + strconv.Quote(summary)}
		}
		c.n = append(c.n, v)
		if i < len(summary) {
			c.seps = append(c.seps, summary[i])
		}
		start = i + 1
	}
	return c, nil
}

func (c counts) String() string {
	var b strings.Builder
	for i, v := range c.n {
		if i > 0 {
			b.WriteByte(c.seps[i-1])
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func (c counts) total() int {
	t := 0
	for _, v := range c.n {
		t += v
	}
	return t
}

// validSummary checks the summary grammar without allocating.
func validSummary(summary string) bool {
	if IsSentinel(summary) {
		return true
	}
	digits := 0
	for i := 0; i < len(summary); i++ {
		switch ch := summary[i]; {
		case ch >= '0' && ch <= '9':
			digits++
		case ch == ':' || ch == '+':
			if digits == 0 {
				return false
			}
			digits = 0
		default:
			return false
		}
	}
	return digits > 0
}

// MinMismatches returns the index of the first flattened summary entry
// with a positive count, which is the number of mismatches of the best
// match. It returns -1 if the summary is empty, a sentinel, or has no
// positive entry. A malformed summary yields a *FormatError carrying the
// raw line.
func MinMismatches(r *Read) (int, error) {
	return summaryMinMismatches(r.Summary, r.Line)
}

func summaryMinMismatches(summary, line string) (int, error) {
	if summary == "" || IsSentinel(summary) {
		return -1, nil
	}
	idx, start := 0, 0
	for i := 0; i <= len(summary); i++ {
		if i < len(summary) && summary[i] != ':' && summary[i] != '+' {
			continue
		}
		v, err := strconv.Atoi(summary[start:i])
		if err != nil || v < 0 {
			return -1, &FormatError{Line: line, Reason: "malformed summary " + strconv.Quote(summary)}
		}
		if v > 0 {
			return idx, nil
		}
		idx++
		start = i + 1
	}
	return -1, nil
}

package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/grailbio/gemtools/encoding/gemmap"
	"github.com/grailbio/gemtools/stream"
)

// Filter is an in-process stage. It must read in until EOF or error and
// write its result to out.
type Filter func(in io.Reader, out io.Writer) error

const maxFilterLine = 256 << 20

// LineFilter returns a Filter that applies fn to every line of its input.
// The line passed to fn excludes the newline; fn returns the replacement
// line, also without newline.
func LineFilter(fn func(line []byte) ([]byte, error)) Filter {
	return func(in io.Reader, out io.Writer) error {
		s := bufio.NewScanner(in)
		s.Buffer(make([]byte, 0, 64<<10), maxFilterLine)
		w := bufio.NewWriterSize(out, 64<<10)
		for s.Scan() {
			line, err := fn(s.Bytes())
			if err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		if err := s.Err(); err != nil {
			return err
		}
		return w.Flush()
	}
}

var (
	zeroSummary = []byte("0")
	maxSummary  = []byte(strconv.Itoa(gemmap.MaxMappings))
)

// MaxMappingsFilter rewrites sentinel summaries to numeric counts: "-" and
// "*" become 0, "+" and "!" become the max mappings count. Tools that pair
// mates uniquely need numeric summaries.
var MaxMappingsFilter = LineFilter(rewriteSentinel)

func rewriteSentinel(line []byte) ([]byte, error) {
	end := lastTab(line, len(line))
	if end <= 0 {
		return line, nil
	}
	start := lastTab(line, end) + 1
	if end-start != 1 {
		return line, nil
	}
	var repl []byte
	switch line[start] {
	case '-', '*':
		repl = zeroSummary
	case '+', '!':
		repl = maxSummary
	default:
		return line, nil
	}
	out := make([]byte, 0, len(line)+len(repl))
	out = append(out, line[:start]...)
	out = append(out, repl...)
	return append(out, line[end:]...), nil
}

// lastTab returns the index of the last tab in line[:end], or -1.
func lastTab(line []byte, end int) int {
	for i := end - 1; i >= 0; i-- {
		if line[i] == '\t' {
			return i
		}
	}
	return -1
}

var trimLabel = regexp.MustCompile(`#T\d+,\d+$`)

// Trim cuts left bases from the start and right bases from the end of
// every mate of every read. With label, the read id gains a
// "#T<left>,<right>" suffix that Untrim removes. Reads too short to trim
// are kept unchanged.
func Trim(it stream.Iterator, left, right int, label bool) stream.Iterator {
	return stream.Transform(it, func(r *gemmap.Read) (*gemmap.Read, bool, error) {
		out := *r
		seqs := strings.Split(r.Seq, " ")
		var quals []string
		if r.Qual != "" {
			quals = strings.Split(r.Qual, " ")
			if len(quals) != len(seqs) {
				return nil, false, &gemmap.LengthMismatchError{ID: r.ID, Seq: r.Seq, Qual: r.Qual}
			}
		}
		for i, s := range seqs {
			if len(s) <= left+right {
				return r, true, nil
			}
			seqs[i] = s[left : len(s)-right]
			if quals != nil {
				q := quals[i]
				if len(q) != len(s) {
					return nil, false, &gemmap.LengthMismatchError{ID: r.ID, Seq: s, Qual: q}
				}
				quals[i] = q[left : len(q)-right]
			}
		}
		out.Seq = strings.Join(seqs, " ")
		if quals != nil {
			out.Qual = strings.Join(quals, " ")
		}
		if label {
			out.ID = fmt.Sprintf("%s#T%d,%d", r.ID, left, right)
		}
		out.Line = gemmap.Encode(&out)
		return &out, true, nil
	})
}

// Untrim removes the label added by Trim from read ids.
func Untrim(it stream.Iterator) stream.Iterator {
	return stream.Transform(it, func(r *gemmap.Read) (*gemmap.Read, bool, error) {
		loc := trimLabel.FindStringIndex(r.ID)
		if loc == nil {
			return r, true, nil
		}
		out := *r
		out.ID = r.ID[:loc[0]]
		out.Line = gemmap.Encode(&out)
		return &out, true, nil
	})
}

package gemmap

import "strings"

// Merge adds the mappings of other to r. Mappings are grouped by stratum
// following the summary counts; within each stratum the mappings of r are
// kept in order and the mappings of other not already present are
// appended. The count of a stratum becomes the larger of r's count plus
// the number of added mappings and other's count.
//
// If r has no usable summary it is replaced by other. If other has no
// usable summary, r is left unchanged.
func (r *Read) Merge(other *Read) error {
	if other.Summary == "" || IsSentinel(other.Summary) {
		return nil
	}
	if r.Summary == "" || IsSentinel(r.Summary) {
		r.Fill(other)
		return nil
	}
	a, err := parseCounts(r.Summary, r.Line)
	if err != nil {
		return err
	}
	b, err := parseCounts(other.Summary, other.Line)
	if err != nil {
		return err
	}
	sa := stratify(a.n, r.Mappings)
	sb := stratify(b.n, other.Mappings)

	out := counts{seps: a.seps}
	if len(b.n) > len(a.n) {
		out.seps = b.seps
	}
	n := len(a.n)
	if len(b.n) > n {
		n = len(b.n)
	}
	out.n = make([]int, n)
	var maps []string
	for s := 0; s < n; s++ {
		var ca, cb int
		var ma, mb []string
		if s < len(a.n) {
			ca, ma = a.n[s], sa[s]
		}
		if s < len(b.n) {
			cb, mb = b.n[s], sb[s]
		}
		seen := make(map[string]bool, len(ma))
		for _, m := range ma {
			seen[m] = true
		}
		maps = append(maps, ma...)
		added := 0
		for _, m := range mb {
			if !seen[m] {
				seen[m] = true
				maps = append(maps, m)
				added++
			}
		}
		c := ca + added
		if cb > c {
			c = cb
		}
		if c > MaxMappings {
			c = MaxMappings
		}
		out.n[s] = c
	}
	r.Summary = out.String()
	if len(maps) == 0 {
		r.Mappings = NoMappings
	} else {
		r.Mappings = strings.Join(maps, ",")
	}
	r.Line = Encode(r)
	return nil
}

// stratify splits the mappings field into per-stratum groups following
// counts. Mappings beyond the total count are assigned to the last
// stratum; strata that were not fully decoded get fewer mappings than
// their count.
func stratify(counts []int, mappings string) [][]string {
	groups := make([][]string, len(counts))
	if mappings == "" || mappings == NoMappings || len(counts) == 0 {
		return groups
	}
	all := strings.Split(mappings, ",")
	s, used := 0, 0
	for _, m := range all {
		for s < len(counts)-1 && used >= counts[s] {
			s++
			used = 0
		}
		groups[s] = append(groups[s], m)
		used++
	}
	return groups
}

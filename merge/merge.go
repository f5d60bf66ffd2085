// Package merge combines the mappings of several read streams into one.
//
// All streams must hold the same reads in the same order. The target
// stream defines the output: every target read is emitted once, possibly
// combined with the mappings of the matching reads of the source streams.
package merge

import (
	"fmt"
	"strings"

	"github.com/grailbio/gemtools/encoding/gemmap"
	"github.com/grailbio/gemtools/stream"
)

// Opts configures a Merger.
type Opts struct {
	// Exclusive replaces the result with a usable source read instead of
	// merging the two.
	Exclusive bool
	// Strict fails with a *DesyncError when a source read does not match
	// the target read. By default the source is skipped for that step and
	// its read is kept for the following steps.
	Strict bool
}

// DesyncError reports a source stream whose read order diverged from the
// target stream.
type DesyncError struct {
	// Target and Source are the mismatched read ids.
	Target, Source string
	// Index is the position of the source stream.
	Index int
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("merge: source %d is out of sync: target read %s, source read %s", e.Index, e.Target, e.Source)
}

// Merger is a stream.Iterator over the merged reads.
//
// Record returns a read owned by the Merger, overwritten by the next Scan.
// Callers that keep reads across Scan calls must copy them with Fill.
type Merger struct {
	target  stream.Iterator
	sources []stream.Iterator
	opts    Opts

	// cache[i] is the next unconsumed read of sources[i], or nil.
	cache  []*gemmap.Read
	done   []bool
	result gemmap.Read
	err     error
	closed  bool
	scanned bool
}

// New creates a Merger. The Merger owns the streams and closes them.
func New(target stream.Iterator, sources []stream.Iterator, opts Opts) *Merger {
	return &Merger{
		target:  target,
		sources: sources,
		opts:    opts,
		cache:   make([]*gemmap.Read, len(sources)),
		done:    make([]bool, len(sources)),
	}
}

// Scan implements stream.Iterator.
func (m *Merger) Scan() bool {
	if m.err != nil || m.closed {
		return false
	}
	m.scanned = true
	if !m.target.Scan() {
		m.err = m.target.Err()
		return false
	}
	m.result.Fill(m.target.Record())
	for i, src := range m.sources {
		if m.done[i] {
			continue
		}
		if m.cache[i] == nil {
			if !src.Scan() {
				if m.err = src.Err(); m.err != nil {
					return false
				}
				m.done[i] = true
				continue
			}
			m.cache[i] = src.Record()
		}
		c := m.cache[i]
		if c.ID != m.result.ID {
			if m.opts.Strict {
				m.err = &DesyncError{Target: m.result.ID, Source: c.ID, Index: i}
				return false
			}
			continue
		}
		if m.err = combine(&m.result, c, m.opts.Exclusive); m.err != nil {
			return false
		}
		m.cache[i] = nil
	}
	return true
}

// combine folds the source read s into the result r.
func combine(r, s *gemmap.Read, exclusive bool) error {
	rm, err := gemmap.MinMismatches(r)
	if err != nil {
		return err
	}
	sm, err := gemmap.MinMismatches(s)
	if err != nil {
		return err
	}
	switch {
	case rm < 0:
		r.Fill(s)
	case !usable(sm):
	case exclusive:
		r.Fill(s)
	default:
		return r.Merge(s)
	}
	return nil
}

func usable(mismatches int) bool {
	return mismatches >= 0 && mismatches < gemmap.MaxMappings
}

// Record implements stream.Iterator. The read is only valid until the next
// call to Scan.
func (m *Merger) Record() *gemmap.Read { return &m.result }

// Err implements stream.Iterator.
func (m *Merger) Err() error { return m.err }

// Close implements stream.Iterator. It closes the target and every
// source.
func (m *Merger) Close() error {
	if m.closed {
		return m.err
	}
	m.closed = true
	errs := []error{m.err, m.target.Close()}
	for _, src := range m.sources {
		errs = append(errs, src.Close())
	}
	for _, err := range errs {
		if err != nil {
			m.err = err
			break
		}
	}
	return m.err
}

// Clone implements stream.Iterator. It clones the target and every source.
func (m *Merger) Clone() (stream.Iterator, error) {
	target, err := m.target.Clone()
	if err != nil {
		return nil, err
	}
	sources := make([]stream.Iterator, 0, len(m.sources))
	for _, src := range m.sources {
		c, err := src.Clone()
		if err != nil {
			target.Close() // nolint: errcheck
			for _, s := range sources {
				s.Close() // nolint: errcheck
			}
			return nil, err
		}
		sources = append(sources, c)
	}
	return New(target, sources, m.opts), nil
}

// Info implements stream.Iterator.
func (m *Merger) Info() stream.Info {
	info := m.target.Info()
	info.Path = ""
	return info
}

func (m *Merger) String() string {
	names := make([]string, len(m.sources))
	for i, src := range m.sources {
		names[i] = name(src)
	}
	return fmt.Sprintf("merge(%s <- %s)", name(m.target), strings.Join(names, ", "))
}

func name(it stream.Iterator) string {
	if p := it.Info().Path; p != "" {
		return p
	}
	return fmt.Sprintf("%T", it)
}

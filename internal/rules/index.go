// internal/rules/index.go
package rules

import (
	"sort"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/solatis/tagrules/internal/types"
)

/*
 * Per-tag inverted index over compiled subrules.
 *
 * Every clause lands in exactly one place:
 *   tag=value -> Tags[tag].Eq[value] lists the subrule
 *   tag!value -> Tags[tag].Neq holds (value, subrule)
 *
 * Posting lists are sorted by subrule id and Neq entries by (value, id),
 * so building twice from the same subrules gives identical structures
 * whatever order the subrules arrive in.
 *
 * Large EQ key sets get a bloom filter over "tag\x00value". A negative
 * test means no subrule wants that pair and the map lookup is skipped;
 * a false positive only costs the lookup it would have done anyway.
 */

// DefaultBloomThreshold is the EQ key count from which a prefilter is built.
const DefaultBloomThreshold = 10000

// NeqEntry is one inequality clause: Subrule requires the tag to differ from Value.
type NeqEntry struct {
	Value   string
	Subrule SubruleID
}

// TagIndex holds every clause that mentions one tag.
type TagIndex struct {
	Eq  map[string][]SubruleID
	Neq []NeqEntry
}

// Index maps tag name to its TagIndex.
type Index struct {
	Tags   map[string]*TagIndex
	eqKeys int
	filter *bloom.BloomFilter
}

type indexConfig struct {
	bloomThreshold int
}

// IndexOption configures BuildIndex.
type IndexOption func(*indexConfig)

// WithBloomThreshold sets the EQ key count that enables the bloom prefilter.
// n <= 0 disables the prefilter.
func WithBloomThreshold(n int) IndexOption {
	return func(c *indexConfig) {
		c.bloomThreshold = n
	}
}

// BuildIndex aggregates the clauses of subrules into per-tag indices.
func BuildIndex(subrules []Subrule, opts ...IndexOption) *Index {
	cfg := indexConfig{bloomThreshold: DefaultBloomThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}

	idx := &Index{Tags: make(map[string]*TagIndex)}
	for _, sr := range subrules {
		for _, c := range sr.Clauses {
			ti := idx.Tags[c.Tag]
			if ti == nil {
				ti = &TagIndex{Eq: make(map[string][]SubruleID)}
				idx.Tags[c.Tag] = ti
			}
			switch c.Op {
			case types.OpEq:
				ti.Eq[c.Value] = append(ti.Eq[c.Value], sr.ID)
			case types.OpNeq:
				ti.Neq = append(ti.Neq, NeqEntry{Value: c.Value, Subrule: sr.ID})
			}
		}
	}

	for _, ti := range idx.Tags {
		for v, ids := range ti.Eq {
			ti.Eq[v] = sortIDs(ids)
			idx.eqKeys++
		}
		sort.Slice(ti.Neq, func(i, j int) bool {
			a, b := ti.Neq[i], ti.Neq[j]
			if a.Value != b.Value {
				return a.Value < b.Value
			}
			return a.Subrule < b.Subrule
		})
	}

	if cfg.bloomThreshold > 0 && idx.eqKeys >= cfg.bloomThreshold {
		idx.filter = bloom.NewWithEstimates(uint(idx.eqKeys)*4, 1e-4)
		for tag, ti := range idx.Tags {
			for v := range ti.Eq {
				idx.filter.AddString(eqKey(tag, v))
			}
		}
	}
	return idx
}

// lookupEq returns the subrules requiring tag=value.
func (idx *Index) lookupEq(ti *TagIndex, tag, value string) []SubruleID {
	if idx.filter != nil && !idx.filter.TestString(eqKey(tag, value)) {
		return nil
	}
	return ti.Eq[value]
}

// HasPrefilter reports whether a bloom filter fronts the EQ lookups.
func (idx *Index) HasPrefilter() bool {
	return idx.filter != nil
}

// EqKeys returns the number of distinct (tag, value) EQ keys.
func (idx *Index) EqKeys() int {
	return idx.eqKeys
}

// NeqEntries returns the total number of inequality entries.
func (idx *Index) NeqEntries() int {
	n := 0
	for _, ti := range idx.Tags {
		n += len(ti.Neq)
	}
	return n
}

func eqKey(tag, value string) string {
	return tag + "\x00" + value
}

func sortIDs(ids []SubruleID) []SubruleID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	for _, id := range ids {
		if len(out) > 0 && out[len(out)-1] == id {
			continue
		}
		out = append(out, id)
	}
	return out
}

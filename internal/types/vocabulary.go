package types

import (
	"sort"
	"strings"

	"github.com/armon/go-radix"
)

// maxSuggestions bounds the alternatives attached to unknown tag/value errors.
const maxSuggestions = 3

// Vocabulary maps tag names to their legal values.
// Names and values are stored case-normalised. A Vocabulary is built once
// and then only read; Add must not race with readers.
type Vocabulary struct {
	tags map[string]map[string]struct{}
	// keys holds "tag" and "tag=value" entries for prefix suggestions
	keys *radix.Tree
}

// NewVocabulary returns an empty vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{
		tags: make(map[string]map[string]struct{}),
		keys: radix.New(),
	}
}

// Add declares tag with the given values, merging with any earlier declaration.
func (v *Vocabulary) Add(tag string, values ...string) {
	name := Normalize(tag)
	if name == "" {
		return
	}
	set, ok := v.tags[name]
	if !ok {
		set = make(map[string]struct{}, len(values))
		v.tags[name] = set
		v.keys.Insert(name, name)
	}
	for _, raw := range values {
		val := Normalize(raw)
		if val == "" {
			continue
		}
		set[val] = struct{}{}
		v.keys.Insert(name+"="+val, val)
	}
}

// HasTag reports whether tag is declared.
func (v *Vocabulary) HasTag(tag string) bool {
	_, ok := v.tags[Normalize(tag)]
	return ok
}

// HasValue reports whether value is legal for tag.
func (v *Vocabulary) HasValue(tag, value string) bool {
	set, ok := v.tags[Normalize(tag)]
	if !ok {
		return false
	}
	_, ok = set[Normalize(value)]
	return ok
}

// Tags returns the declared tag names in sorted order.
func (v *Vocabulary) Tags() []string {
	out := make([]string, 0, len(v.tags))
	for name := range v.tags {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Values returns the legal values of tag in sorted order.
func (v *Vocabulary) Values(tag string) []string {
	set := v.tags[Normalize(tag)]
	out := make([]string, 0, len(set))
	for val := range set {
		out = append(out, val)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of declared tags.
func (v *Vocabulary) Len() int {
	return len(v.tags)
}

// SuggestTags returns up to three declared tags sharing the longest prefix with name.
func (v *Vocabulary) SuggestTags(name string) []string {
	return v.suggest("", Normalize(name), false)
}

// SuggestValues returns up to three legal values of tag sharing the longest prefix with value.
func (v *Vocabulary) SuggestValues(tag, value string) []string {
	return v.suggest(Normalize(tag)+"=", Normalize(value), true)
}

// suggest shortens the probe one byte at a time until some key under
// scope+probe exists. Tag suggestions skip "tag=value" keys.
func (v *Vocabulary) suggest(scope, probe string, values bool) []string {
	for n := len(probe); n > 0; n-- {
		var out []string
		v.keys.WalkPrefix(scope+probe[:n], func(key string, val interface{}) bool {
			if !values && strings.IndexByte(key, '=') >= 0 {
				return false
			}
			out = append(out, val.(string))
			return len(out) >= maxSuggestions
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

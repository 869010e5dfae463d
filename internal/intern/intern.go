// Package intern provides the process-lifetime string deduplication and
// small ordered containers spec.md §2 calls for ("Interning &
// containers... 10%"). Everything here lives for the whole run; nothing
// is freed early (§5 resource policy — this is a batch program).
package intern

import (
	"github.com/emirpasic/gods/sets/linkedhashset"
)

// Table deduplicates short strings such as author names, tag names, and
// revision strings so that equal strings share one underlying instance.
type Table struct {
	entries map[string]string
}

// NewTable returns an empty interning table.
func NewTable() *Table {
	return &Table{entries: make(map[string]string)}
}

// Intern returns the canonical instance of s, recording s as canonical
// on first sight.
func (t *Table) Intern(s string) string {
	if v, ok := t.entries[s]; ok {
		return v
	}
	t.entries[s] = s
	return s
}

// Len reports how many distinct strings have been interned.
func (t *Table) Len() int {
	return len(t.entries)
}

// OrderedSet is an insertion-ordered set of values, used where spec.md
// §3 requires stable iteration order over a collection — e.g. a
// Revision's branch_children, or a Symbol's backreferenced Tags.
type OrderedSet struct {
	set *linkedhashset.Set
}

// NewOrderedSet returns an empty insertion-ordered set.
func NewOrderedSet() *OrderedSet {
	return &OrderedSet{set: linkedhashset.New()}
}

// Add inserts v if not already present; re-adding an existing value
// does not change its position.
func (s *OrderedSet) Add(v interface{}) {
	s.set.Add(v)
}

// Remove deletes v if present.
func (s *OrderedSet) Remove(v interface{}) {
	s.set.Remove(v)
}

// Contains reports whether v is a member.
func (s *OrderedSet) Contains(v interface{}) bool {
	return s.set.Contains(v)
}

// Values returns the members in insertion order.
func (s *OrderedSet) Values() []interface{} {
	return s.set.Values()
}

// Size returns the number of members.
func (s *OrderedSet) Size() int {
	return s.set.Size()
}

package intern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternDeduplicates(t *testing.T) {
	tab := NewTable()
	a := tab.Intern("jrandom")
	b := tab.Intern("jrandom")
	assert.Equal(t, a, b)
	assert.Equal(t, 1, tab.Len())

	tab.Intern("esr")
	assert.Equal(t, 2, tab.Len())
}

func TestOrderedSetPreservesInsertionOrder(t *testing.T) {
	s := NewOrderedSet()
	s.Add("c")
	s.Add("a")
	s.Add("b")
	s.Add("a") // re-add does not move it
	assert.Equal(t, []interface{}{"c", "a", "b"}, s.Values())
	assert.Equal(t, 3, s.Size())

	s.Remove("a")
	assert.False(t, s.Contains("a"))
	assert.Equal(t, 2, s.Size())
}

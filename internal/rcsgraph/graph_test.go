package rcsgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Scenario 2 (spec.md §8): one file with revisions 1.1, 1.2, 1.2.2.1 and
// a branch tag REL_A: 1.2.0.2.
func TestMagicBranchTag(t *testing.T) {
	g := NewGraph()
	f := g.File("mod/file.c")

	g.AddSymbolEntry(f, "REL_A", "1.2.0.2")

	tag, ok := f.Symbols["REL_A"]
	if assert.True(t, ok) {
		assert.Equal(t, TagBranch, tag.Kind)
		assert.Equal(t, 2, tag.BranchID)
		assert.Equal(t, "1.2", tag.Rev.Rev)
	}

	r111 := f.Revision("1.1")
	r12 := f.Revision("1.2")
	r1221 := f.Revision("1.2.2.1")
	_ = r111
	require := assert.New(t)
	_, err := g.FinalizeRevisionBranch(f, r12, false)
	require.NoError(err)
	require.Nil(r12.Branch) // 1.2 is on trunk/head

	_, err = g.FinalizeRevisionBranch(f, r1221, false)
	require.NoError(err)
	if require.NotNil(r1221.Branch) {
		require.Equal("REL_A", r1221.Branch.Sym.Name)
	}

	if w := AssignPreRevision(r1221, r12); w != "" {
		t.Fatalf("unexpected warning: %s", w)
	}
	require.Contains(r12.BranchChildren.Values(), r1221)
}

// A vendor-branch symbolic name (e.g. "VENDOR: 1.1.1", 2 dots, even
// count) classifies as TagVendorBranch rather than a static tag,
// grounded on is_vendor_branch(eot).
func TestVendorBranchTag(t *testing.T) {
	g := NewGraph()
	f := g.File("mod/file.c")

	g.AddSymbolEntry(f, "VENDOR", "1.1.1")

	tag, ok := f.Symbols["VENDOR"]
	if assert.True(t, ok) {
		assert.Equal(t, TagVendorBranch, tag.Kind)
		assert.Equal(t, 1, tag.BranchID)
		assert.Equal(t, "1.1", tag.Rev.Rev)
	}

	r1111 := f.Revision("1.1.1.1")
	_, err := g.FinalizeRevisionBranch(f, r1111, false)
	assert.NoError(t, err)
	if assert.NotNil(t, r1111.Branch) {
		assert.Equal(t, "VENDOR", r1111.Branch.Sym.Name)
	}
}

// Scenario 5 (spec.md §8): two distinct files each with
// `branches:  1.1.2;` but no matching branch tag merge into one Symbol
// once named.
func TestUnnamedBranchMergeAndNaming(t *testing.T) {
	g := NewGraph()
	fa := g.File("a.c")
	fb := g.File("b.c")

	ta := g.AddUnnamedBranch(fa, "1.1.2")
	tb := g.AddUnnamedBranch(fb, "1.1.2")

	assert.NotNil(t, ta)
	assert.NotNil(t, tb)
	assert.Same(t, ta.Sym, tb.Sym)
	assert.Empty(t, ta.Sym.Name)
	assert.Empty(t, tb.Sym.Name)

	g.NameUnnamedBranches()

	assert.Equal(t, "$CVSPS_UNNAMED_BRANCH_1", ta.Sym.Name)
	assert.Equal(t, "$CVSPS_UNNAMED_BRANCH_1", tb.Sym.Name)
}

// FinalizeRevisionBranch on a revision whose parent carries no branch
// tag is a fatal error by default, and a warned-but-tolerated
// synthesis of an anonymous branch Tag under -U (DESIGN.md's `-U`
// fatal/tolerant split amendment).
func TestFinalizeRevisionBranchUnnamedRequiresDashU(t *testing.T) {
	g := NewGraph()
	f := g.File("c.c")
	f.HaveBranches = true
	r12 := f.Revision("1.2")
	r1221 := f.Revision("1.2.2.1")
	_ = r12

	_, err := g.FinalizeRevisionBranch(f, r1221, false)
	assert.Error(t, err)

	warn, err := g.FinalizeRevisionBranch(f, r1221, true)
	assert.NoError(t, err)
	assert.NotEmpty(t, warn)
	if assert.NotNil(t, r1221.Branch) {
		assert.Equal(t, TagBranch, r1221.Branch.Kind)
		assert.Empty(t, r1221.Branch.Sym.Name)
	}
}

func TestAssignPreRevisionOrphanIsOnlyAcceptedFor1_1(t *testing.T) {
	g := NewGraph()
	f := g.File("a.c")
	r11 := f.Revision("1.1")
	assert.Equal(t, "", AssignPreRevision(r11, nil))

	// 1.2 and 1.3 share the trunk branch prefix ("1"), so they link
	// directly with no warning.
	r12 := f.Revision("1.2")
	r13 := f.Revision("1.3")
	assert.Equal(t, "", AssignPreRevision(r13, r12))
	assert.Equal(t, r12, r13.PrevRev)

	// 1.2.4.3 is on a different branch than 1.5, has a leaf id other
	// than 1, and has no resolved branch tag: this is a genuine orphan
	// and a warning is expected.
	r243 := f.Revision("1.2.4.3")
	r15 := f.Revision("1.5")
	warn := AssignPreRevision(r243, r15)
	assert.NotEmpty(t, warn)
}

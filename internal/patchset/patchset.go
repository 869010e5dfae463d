// Package patchset implements the fuzzy-time equivalence-class
// aggregator described in spec.md §4.3: it turns the stream of
// internal/logparse.Record values for one run into a set of PatchSet
// values, each grouping the Revisions that were (most likely) produced
// by a single CVS/RCS commit.
package patchset

import (
	"strings"
	"time"

	"github.com/cvspsgo/cvsps/internal/intern"
	"github.com/cvspsgo/cvsps/internal/logparse"
	"github.com/cvspsgo/cvsps/internal/rcsgraph"
	"github.com/cvspsgo/cvsps/internal/revstring"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/sirupsen/logrus"
)

// FunkFactor values classify how a PatchSet sits relative to the `-r`
// start/end tags (spec.md §4.7 "funk_factor overrides the -r bounds"),
// grounded on cvsps_types.h's fnk_factor enum.
const (
	FnkNone = iota
	FnkShowSome
	FnkShowAll
	FnkHideAll
	FnkHideSome
)

// FunkLabel returns the original's fnk_descr string for f, or "" for
// FnkNone, for display next to the PatchSet header.
func FunkLabel(f int) string {
	switch f {
	case FnkShowSome:
		return "FNK_SHOW_SOME"
	case FnkShowAll:
		return "FNK_SHOW_ALL"
	case FnkHideAll:
		return "FNK_HIDE_ALL"
	case FnkHideSome:
		return "FNK_HIDE_SOME"
	}
	return ""
}

// PatchSet is an equivalence class over Revisions keyed by (branch,
// branch_add, author, log message) with a fuzzy time window (§3, §4.3).
type PatchSet struct {
	ID int

	Date     time.Time
	MinDate  time.Time
	MaxDate  time.Time
	hasRange bool // false until this PatchSet has been stored as its own tree node

	Author string
	Descr  string

	Branch    *rcsgraph.Symbol // nil for the trunk
	BranchAdd bool

	Members *intern.OrderedSet // ordered set of *rcsgraph.Revision

	FunkFactor int // set later by internal/resolve

	VendorShadowed *PatchSet // set on a synthesized shadow set; points at the vendor set it mirrors

	collided bool
}

// PSID satisfies rcsgraph.PatchSetRef.
func (ps *PatchSet) PSID() int { return ps.ID }

// MemberList returns ps's members as a concrete, iterable slice, for
// callers outside this package (internal/order, internal/resolve,
// internal/emit) that need to walk them without reaching into the
// underlying intern.OrderedSet.
func (ps *PatchSet) MemberList() []*rcsgraph.Revision {
	return revisionValues(ps.Members)
}

// Aggregator drives patch-set construction across an entire run. It is
// not safe for concurrent use, matching spec.md §5's single-threaded
// execution model.
type Aggregator struct {
	Logger     *logrus.Logger
	FuzzFactor time.Duration

	tree *redblacktree.Tree

	all        []*PatchSet
	collisions []*PatchSet

	nextID       int
	branchOrder  map[*rcsgraph.Symbol]int
	nextBranchID int
}

// NewAggregator returns an Aggregator with the given fuzz-time window
// (spec.md §4.3 "Default tuning: fuzz factor 300 seconds").
func NewAggregator(logger *logrus.Logger, fuzzFactor time.Duration) *Aggregator {
	a := &Aggregator{
		Logger:      logger,
		FuzzFactor:  fuzzFactor,
		branchOrder: make(map[*rcsgraph.Symbol]int),
	}
	a.tree = redblacktree.NewWith(a.comparePatchSets)
	return a
}

// All returns every PatchSet built so far, in creation order.
func (a *Aggregator) All() []*PatchSet { return a.all }

// Collisions returns the PatchSets that had a same-file/same-revision
// member rejected (spec.md §4.3 "collisions list for reporting").
func (a *Aggregator) Collisions() []*PatchSet { return a.collisions }

// symbolOrder assigns each distinct branch Symbol a stable, arbitrary
// ordinal the first time it is seen. The original compares raw branch
// pointers (`ps1->branch - ps2->branch`) purely to give the ordered
// tree a consistent way to separate two different branches; the actual
// numeric result never matters, only that equal symbols compare equal
// and different symbols don't. A Go pointer has no meaningful ordering,
// so an assigned ordinal reproduces the same "just be consistent"
// property.
func (a *Aggregator) symbolOrder(sym *rcsgraph.Symbol) int {
	if sym == nil {
		return 0
	}
	if id, ok := a.branchOrder[sym]; ok {
		return id
	}
	a.nextBranchID++
	a.branchOrder[sym] = a.nextBranchID
	return a.nextBranchID
}

// comparePatchSets is the tree ordering for candidate/stored PatchSet
// lookups, grounded on compare_patch_sets: (author, descr, branch,
// branch_add, members) break ties outright; only once every other field
// matches does the fuzzy time window decide, and even then a same-file
// member ordering (via revstring.Compare) still wins over date. Exactly
// one of the two patch sets being compared may have an established
// window; the other is always the brand-new candidate being searched
// for, never two already-inserted nodes (the tree is insert-only).
func (a *Aggregator) comparePatchSets(x, y interface{}) int {
	p1 := x.(*PatchSet)
	p2 := y.(*PatchSet)

	if c := strings.Compare(p1.Author, p2.Author); c != 0 {
		return c
	}
	if c := strings.Compare(p1.Descr, p2.Descr); c != 0 {
		return c
	}
	if c := a.symbolOrder(p1.Branch) - a.symbolOrder(p2.Branch); c != 0 {
		if c < 0 {
			return -1
		}
		return 1
	}
	if p1.BranchAdd != p2.BranchAdd {
		if p1.BranchAdd {
			return 1
		}
		return -1
	}
	if c := comparePatchSetsByMembers(p1, p2); c != 0 {
		return c
	}

	var d, min, max time.Time
	switch {
	case !p1.hasRange:
		d, min, max = p1.Date, p2.MinDate, p2.MaxDate
	case !p2.hasRange:
		d, min, max = p2.Date, p1.MinDate, p1.MaxDate
	default:
		panic("patchset: compared two already-established patch sets")
	}
	if min.Before(d) && d.Before(max) {
		return 0
	}
	if p1.Date.Before(p2.Date) {
		return -1
	}
	return 1
}

// revisionValues type-asserts an ordered set of member Revisions back
// to their concrete type.
func revisionValues(set *intern.OrderedSet) []*rcsgraph.Revision {
	vals := set.Values()
	out := make([]*rcsgraph.Revision, len(vals))
	for i, v := range vals {
		out[i] = v.(*rcsgraph.Revision)
	}
	return out
}

// comparePatchSetsByMembers implements compare_patch_sets_by_members:
// the first File shared by both sets' members breaks the tie via the
// revision-string comparator (§4.4), never via date.
func comparePatchSetsByMembers(p1, p2 *PatchSet) int {
	for _, m1 := range revisionValues(p1.Members) {
		for _, m2 := range revisionValues(p2.Members) {
			if m1.File == m2.File {
				return revstring.Compare(m1.Rev, m2.Rev)
			}
		}
	}
	return 0
}

// Visit implements assign_patch_set: build a candidate PatchSet for
// rec, search the tree for an equivalent (already-established) one,
// and either absorb rec's revision into it or install the candidate as
// a new PatchSet.
func (a *Aggregator) Visit(rec logparse.Record) {
	rev := rec.Rev
	cand := &PatchSet{
		Date:    rec.Date,
		Author:  rec.Author,
		Descr:   rec.Log,
		Members: intern.NewOrderedSet(),
	}
	if rev.Branch != nil {
		cand.Branch = rev.Branch.Sym
	}
	cand.BranchAdd = rev.BranchAdd

	// Mirrors the original's temporary list_ins/list_del bracketing the
	// tsearch call: rev needs to be a member of cand for
	// comparePatchSetsByMembers to see it, but only gets permanently
	// admitted afterward via addMember.
	cand.Members.Add(rev)
	existing, found := a.tree.Get(cand)
	cand.Members.Remove(rev)

	var target *PatchSet
	if found {
		target = existing.(*PatchSet)
		if cand.Date.Before(target.Date) {
			target.Date = cand.Date
		}
		low := cand.Date.Add(-a.FuzzFactor)
		if low.Before(target.MinDate) {
			target.MinDate = low
		} else if high := cand.Date.Add(a.FuzzFactor); high.After(target.MaxDate) {
			target.MaxDate = high
		}
		a.mergeUnnamedBranches(target, cand.Branch)
	} else {
		a.nextID++
		cand.ID = a.nextID
		cand.MinDate = cand.Date.Add(-a.FuzzFactor)
		cand.MaxDate = cand.Date.Add(a.FuzzFactor)
		// Insert with rev still a member and without an established
		// window, so Put walks the same comparisons Get just did.
		cand.Members.Add(rev)
		a.tree.Put(cand, cand)
		cand.Members.Remove(rev)
		cand.hasRange = true
		a.all = append(a.all, cand)
		target = cand
	}

	a.addMember(target, rev)
}

// addMember implements patch_set_add_member: a same-file/same-revision
// member is a collision (the new member is dropped); a same-file,
// different-revision member is resolved by revision order, the older
// one losing its membership; otherwise the member is simply appended.
func (a *Aggregator) addMember(ps *PatchSet, rev *rcsgraph.Revision) {
	for _, m := range revisionValues(ps.Members) {
		if m.File != rev.File {
			continue
		}
		order := revstring.Compare(rev.Rev, m.Rev)
		if order == 0 {
			a.recordCollision(ps)
			return
		}
		if order < 0 {
			return
		}
		ps.Members.Remove(m)
		break
	}
	rev.PatchSet = ps
	ps.Members.Add(rev)
}

func (a *Aggregator) recordCollision(ps *PatchSet) {
	if ps.collided {
		return
	}
	ps.collided = true
	a.collisions = append(a.collisions, ps)
}

// mergeUnnamedBranches implements spec.md §4.3's "On hit" clause: when
// the stored set's branch differs from the candidate's and both are
// still-unnamed branch Symbols, the two Symbols merge so that later
// naming collapses them into one. This has no direct analog in the
// original (cvsps has no cross-patchset branch-merge concept); it
// exists to satisfy the scenario spec.md §8 describes explicitly.
func (a *Aggregator) mergeUnnamedBranches(target *PatchSet, candBranch *rcsgraph.Symbol) {
	if target.Branch == nil || candBranch == nil || target.Branch == candBranch {
		return
	}
	if target.Branch.Name != "" || candBranch.Name != "" {
		return // at least one is already named: not an unnamed-merge case
	}
	if target.Branch.Depth&1 != candBranch.Depth&1 {
		if a.Logger != nil {
			a.Logger.Warnf("not merging unnamed branches with conflicting depth parity (%d, %d)", target.Branch.Depth, candBranch.Depth)
		}
		return
	}
	survivor, dead := target.Branch, candBranch
	for _, v := range dead.Tags.Values() {
		tag := v.(*rcsgraph.Tag)
		tag.Sym = survivor
		survivor.Tags.Add(tag)
	}
	// Any PatchSet already built with .Branch pointing at dead (captured
	// by value at Visit time, not via the Tag indirection) needs
	// repointing too, or internal/order's per-branch grouping would
	// still see two separate branches.
	for _, ps := range a.all {
		if ps.Branch == dead {
			ps.Branch = survivor
		}
	}
	// dead.Tags is reset rather than nilled: Graph.unnamed may still map
	// some raw branch-id key to dead (internal/rcsgraph's
	// unnamedSymbolFor/AddUnnamedBranch/FinalizeRevisionBranch), and a
	// later file in the same log stream registering under that key would
	// call NewTag on dead, panicking on a nil OrderedSet receiver.
	dead.Tags = intern.NewOrderedSet()
}

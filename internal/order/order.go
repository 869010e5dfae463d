// Package order implements spec.md §4.6: monotonic psid assignment by
// global chronological order, and the per-branch/global-merge pass
// that produces the final emit order.
package order

import (
	"sort"

	"github.com/cvspsgo/cvsps/internal/patchset"
	"github.com/cvspsgo/cvsps/internal/rcsgraph"
	"github.com/cvspsgo/cvsps/internal/revstring"
)

// AssignPSIDs sorts all by the flat chronological comparator
// (compare_patch_sets_bytime: date, then shared-file member revision
// order, then author, then description, then a stable branch ordinal)
// and assigns sequential psids in that order. It must run before
// internal/resolve, since symbol resolution selects a Symbol's patch
// set by "highest psid".
func AssignPSIDs(all []*patchset.PatchSet) {
	symOrder := make(map[*rcsgraph.Symbol]int)
	nextSym := 0
	ordinal := func(sym *rcsgraph.Symbol) int {
		if sym == nil {
			return 0
		}
		if id, ok := symOrder[sym]; ok {
			return id
		}
		nextSym++
		symOrder[sym] = nextSym
		return nextSym
	}

	sorted := append([]*patchset.PatchSet(nil), all...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareByTime(sorted[i], sorted[j], ordinal) < 0
	})

	for i, ps := range sorted {
		ps.ID = i + 1
	}
}

func compareByTime(p1, p2 *patchset.PatchSet, ordinal func(*rcsgraph.Symbol) int) int {
	if !p1.Date.Equal(p2.Date) {
		if p1.Date.Before(p2.Date) {
			return -1
		}
		return 1
	}
	if c := comparePatchSetsByMembers(p1, p2); c != 0 {
		return c
	}
	if c := compareStrings(p1.Author, p2.Author); c != 0 {
		return c
	}
	if c := compareStrings(p1.Descr, p2.Descr); c != 0 {
		return c
	}
	return ordinal(p1.Branch) - ordinal(p2.Branch)
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// comparePatchSetsByMembers mirrors the unexported comparator of the
// same name in internal/patchset: the first File shared by both sets'
// members breaks the tie via the revision-string comparator.
func comparePatchSetsByMembers(p1, p2 *patchset.PatchSet) int {
	m1 := p1.MemberList()
	m2 := p2.MemberList()
	for _, a := range m1 {
		for _, b := range m2 {
			if a.File == b.File {
				return revstring.Compare(a.Rev, b.Rev)
			}
		}
	}
	return 0
}

// BuildBranchLists groups every PatchSet whose Branch is non-nil onto
// that Symbol's PatchSets slice, sorted by the branch-local comparator
// (spec.md §4.6 "Per-branch sort"). Trunk patchsets (Branch == nil)
// have no owning Symbol and are not grouped; the caller collects them
// separately for FinalOrder's trunk cursor.
func BuildBranchLists(all []*patchset.PatchSet) {
	bySymbol := make(map[*rcsgraph.Symbol][]*patchset.PatchSet)
	for _, ps := range all {
		if ps.Branch == nil {
			continue
		}
		bySymbol[ps.Branch] = append(bySymbol[ps.Branch], ps)
	}
	for sym, list := range bySymbol {
		sorted := append([]*patchset.PatchSet(nil), list...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return compareBranchLocal(sorted[i], sorted[j]) < 0
		})
		refs := make([]rcsgraph.PatchSetRef, len(sorted))
		for i, ps := range sorted {
			refs[i] = ps
		}
		sym.PatchSets = refs
	}
}

// compareBranchLocal implements spec.md §4.6's per-branch comparator:
// non-overlapping fuzz windows order by window; otherwise break the
// tie by shared-file member revision order, then by exact date.
func compareBranchLocal(a, b *patchset.PatchSet) int {
	if a.MaxDate.Before(b.Date) {
		return -1
	}
	if a.Date.After(b.MaxDate) {
		return 1
	}
	if c := comparePatchSetsByMembers(a, b); c != 0 {
		return c
	}
	if a.Date.Before(b.Date) {
		return -1
	}
	if a.Date.After(b.Date) {
		return 1
	}
	return 0
}

// symbolPatchSets type-asserts sym.PatchSets (populated by
// BuildBranchLists) back to its concrete element type.
func symbolPatchSets(sym *rcsgraph.Symbol) []*patchset.PatchSet {
	out := make([]*patchset.PatchSet, 0, len(sym.PatchSets))
	for _, ref := range sym.PatchSets {
		if ps, ok := ref.(*patchset.PatchSet); ok {
			out = append(out, ps)
		}
	}
	return out
}

// cursor tracks one branch's (or the trunk's) still-pending,
// branch-locally-sorted patch sets during the global merge.
type cursor struct {
	sym   *rcsgraph.Symbol // nil for trunk
	pend  []*patchset.PatchSet
	depth int
}

// FinalOrder implements spec.md §4.6's "Global merge": starting from
// the set of head branches (those whose Symbol has no resolved parent
// patch set, trunk included as the nil-Symbol head), repeatedly picks
// the head whose next pending patch set compares smallest by the final
// comparator, appends it to the result, and promotes any branch rooted
// at that patch set to a head. BuildBranchLists and
// internal/resolve.Resolve must both have already run: this pass reads
// Symbol.PatchSets (grouped, branch-local sorted lists) and
// Symbol.PatchSet (the resolved branch-point anchor).
func FinalOrder(trunk []*patchset.PatchSet, symbols map[string]*rcsgraph.Symbol, warn func(string)) []*patchset.PatchSet {
	sortedTrunk := append([]*patchset.PatchSet(nil), trunk...)
	sort.SliceStable(sortedTrunk, func(i, j int) bool {
		return compareBranchLocal(sortedTrunk[i], sortedTrunk[j]) < 0
	})

	heads := []*cursor{{sym: nil, pend: sortedTrunk, depth: 1}}

	// A branch becomes a head once its parent patch set (the one its
	// branch-point tag resolves to) has been emitted.
	waiting := make(map[*patchset.PatchSet][]*rcsgraph.Symbol)
	for _, sym := range symbols {
		if !sym.IsBranch() || len(sym.PatchSets) == 0 {
			continue
		}
		anchor, ok := sym.PatchSet.(*patchset.PatchSet)
		if !ok || anchor == nil {
			// No resolved anchor: treat as an independent head so its
			// commits aren't lost (spec.md §4.6 "reachability failure").
			heads = append(heads, &cursor{sym: sym, pend: symbolPatchSets(sym), depth: sym.Depth})
			continue
		}
		waiting[anchor] = append(waiting[anchor], sym)
	}

	var result []*patchset.PatchSet
	for len(heads) > 0 {
		bestIdx := -1
		for i, h := range heads {
			if len(h.pend) == 0 {
				continue
			}
			if bestIdx == -1 || finalLess(h, heads[bestIdx]) {
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		h := heads[bestIdx]
		ps := h.pend[0]
		h.pend = h.pend[1:]
		result = append(result, ps)

		for _, sym := range waiting[ps] {
			heads = append(heads, &cursor{sym: sym, pend: symbolPatchSets(sym), depth: sym.Depth})
		}
		delete(waiting, ps)

		if len(h.pend) == 0 {
			heads = append(heads[:bestIdx], heads[bestIdx+1:]...)
		}
	}

	if len(waiting) > 0 {
		// Reachability failure: some branches' anchors were never
		// reached as heads (e.g. a cycle or a dangling resolution).
		// Force them into the result in psid order so nothing is lost.
		var stranded []*patchset.PatchSet
		for _, syms := range waiting {
			for _, sym := range syms {
				stranded = append(stranded, symbolPatchSets(sym)...)
			}
		}
		if len(stranded) > 0 {
			sort.SliceStable(stranded, func(i, j int) bool { return stranded[i].ID < stranded[j].ID })
			if warn != nil {
				warn("some branches were unreachable during global merge; forcing them into the order")
			}
			result = append(result, stranded...)
		}
	}

	return result
}

// finalLess implements the final comparator's extension over the
// branch-local one: a vendor-shadowed patch set yields to its vendor
// patch set, and at equal date a deeper branch (higher Symbol depth)
// precedes a shallower one.
func finalLess(a, b *cursor) bool {
	pa, pb := a.pend[0], b.pend[0]
	if pa.VendorShadowed != nil && pa.VendorShadowed == pb {
		return false
	}
	if pb.VendorShadowed != nil && pb.VendorShadowed == pa {
		return true
	}
	if c := compareBranchLocal(pa, pb); c != 0 {
		return c < 0
	}
	if pa.Date.Equal(pb.Date) && a.depth != b.depth {
		return a.depth > b.depth
	}
	return false
}

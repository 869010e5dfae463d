package rcsgraph

import (
	"fmt"

	"github.com/cvspsgo/cvsps/internal/intern"
	"github.com/cvspsgo/cvsps/internal/revstring"
)

// Graph owns every File built during one run and the pool of Symbols
// shared project-wide across them (spec.md §3 "Symbol... shared across
// files"). It is the top-level value built by internal/logparse and
// consumed by internal/patchset.
type Graph struct {
	Files   map[string]*File
	Symbols map[string]*Symbol // name -> Symbol; unnamed branches keyed by a synthetic id
	Strings *intern.Table

	unnamed      map[string]*Symbol // raw branch-id string -> shared anonymous Symbol
	unnamedOrder []string           // discovery order of unnamed keys, for NameUnnamedBranches
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		Files:   make(map[string]*File),
		Symbols: make(map[string]*Symbol),
		Strings: intern.NewTable(),
		unnamed: make(map[string]*Symbol),
	}
}

// File returns the File for path, allocating it on first sighting
// (spec.md §3).
func (g *Graph) File(path string) *File {
	if f, ok := g.Files[path]; ok {
		return f
	}
	f := &File{Path: path, Revisions: make(map[string]*Revision), Symbols: make(map[string]*Tag)}
	g.Files[path] = f
	return f
}

// symbolDepth returns a branch symbol's depth (dot-count of the branch
// revision string, plus one) with the low bit marking branch kind
// (spec.md §3 global invariant).
func symbolDepth(branchRev string, isBranch bool) int {
	d := revstring.CountDots(branchRev) + 1
	if isBranch {
		d |= 1
	} else {
		d &^= 1
	}
	return d
}

// symbolFor returns the project-wide Symbol named name, creating it
// lazily on first encounter (spec.md §3 Symbol lifecycle).
func (g *Graph) symbolFor(name string, depth int) *Symbol {
	name = g.Strings.Intern(name)
	if s, ok := g.Symbols[name]; ok {
		return s
	}
	s := NewSymbol(depth)
	s.Name = name
	g.Symbols[name] = s
	return s
}

// unnamedSymbolFor returns the shared anonymous branch Symbol for the
// raw branch-id string key (e.g. "1.1.2"), creating it on first use.
// Keying on the branch-id string itself, rather than a per-call
// sequence number, is what lets two distinct files that both carry the
// same unnamed branch id merge into one Symbol once named (spec.md
// §4.1, end-to-end scenario 5, SPEC_FULL.md §D.6).
func (g *Graph) unnamedSymbolFor(key string, depth int) *Symbol {
	if s, ok := g.unnamed[key]; ok {
		return s
	}
	s := NewSymbol(depth)
	g.unnamed[key] = s
	g.unnamedOrder = append(g.unnamedOrder, key)
	return s
}

// AddSymbolEntry classifies one `<tag>: <dotted>` symbolic-names entry
// per spec.md §4.2 and registers a Tag on the file at the indicated
// revision. file.HaveBranches must still be false (symbol-table build
// phase); the caller is responsible for that ordering.
func (g *Graph) AddSymbolEntry(f *File, name, dotted string) {
	branchTrunc, leaf, ok := revstring.GetBranchExt(dotted)
	if !ok {
		return // bare "1" with no dot: degenerate, ignore
	}

	// Case 1: magic branch tag -- second-to-last component is 0.
	if secondTrunc, lastOfTrunc, ok2 := revstring.GetBranchExt(branchTrunc); ok2 && lastOfTrunc == 0 {
		sym := g.symbolFor(name, symbolDepth(secondTrunc, true))
		rev := f.Revision(secondTrunc)
		tag := NewTag(sym, rev, TagBranch, leaf)
		f.Symbols[name] = tag
		return
	}

	// Case 2: vendor branch tag -- even dot count on the full dotted
	// string, grounded on is_vendor_branch(eot).
	if revstring.IsVendorBranch(dotted) {
		sym := g.symbolFor(name, symbolDepth(branchTrunc, true))
		rev := f.Revision(branchTrunc)
		tag := NewTag(sym, rev, TagVendorBranch, leaf)
		f.Symbols[name] = tag
		return
	}

	// Case 3: static tag at a fixed revision.
	sym := g.symbolFor(name, symbolDepth(dotted, false))
	rev := f.Revision(dotted)
	tag := NewTag(sym, rev, TagStatic, 0)
	f.Symbols[name] = tag
}

// AddUnnamedBranch registers one entry of a `branches:  <b>;<b>;…` line
// (branchID is one "<b>", e.g. "1.1.2") that has no corresponding
// symbolic name, creating (or reusing, if one already exists for this
// leaf) an anonymous branch Symbol at the truncated revision (spec.md
// §4.1, end-to-end scenario 5).
func (g *Graph) AddUnnamedBranch(f *File, branchID string) *Tag {
	branchRev, leaf, ok := revstring.GetBranchExt(branchID)
	if !ok {
		return nil
	}
	rev := f.Revision(branchRev)
	if tag := findBranchTag(rev, leaf); tag != nil {
		return tag // already have a (possibly named) tag for this branch
	}
	sym := g.unnamedSymbolFor(branchID, symbolDepth(branchRev, true))
	return NewTag(sym, rev, TagBranch, leaf)
}

// NameUnnamedBranches assigns sequential names
// "$CVSPS_UNNAMED_BRANCH_<n>" to every anonymous branch Symbol, in
// discovery order (spec.md §3 Symbol lifecycle, SPEC_FULL.md §D.6).
func (g *Graph) NameUnnamedBranches() {
	for i, key := range g.unnamedOrder {
		s := g.unnamed[key]
		s.Name = fmt.Sprintf("$CVSPS_UNNAMED_BRANCH_%d", i+1)
		g.Symbols[s.Name] = s
	}
	g.unnamed = make(map[string]*Symbol)
	g.unnamedOrder = nil
}

// FinalizeRevisionBranch computes and sets rev.Branch per spec.md §4.2
// "Revision finalization": truncate rev's own revision string to its
// branch; if that truncation has a branch leaf, look up the
// corresponding Tag on the parent revision by branch id; otherwise the
// revision is on head (no Branch, nil is valid for head/trunk
// revisions). When the expected parent branch Tag is missing, this is
// a fatal parse error unless allowUnnamed is set (the `-U` flag, §6),
// in which case an anonymous branch Tag is synthesized on the parent
// revision and a warning is returned instead.
func (g *Graph) FinalizeRevisionBranch(f *File, rev *Revision, allowUnnamed bool) (warning string, err error) {
	branch, ok := revstring.GetBranch(rev.Rev)
	if !ok {
		return "", fmt.Errorf("%s: invalid revision format %s", f.Path, rev.Rev)
	}
	parentBranch, branchID, hasParent := revstring.GetBranchExt(branch)
	if !hasParent {
		// branch has no further dot ("1"): this is a head (trunk) revision.
		return "", nil
	}
	parentRev := f.Revision(parentBranch)
	tag := findBranchTag(parentRev, branchID)
	if tag != nil {
		rev.Branch = tag
		return "", nil
	}
	if !allowUnnamed {
		return "", fmt.Errorf("%s: no branch tag found on parent %s for revision %s", f.Path, parentBranch, rev.Rev)
	}
	key := fmt.Sprintf("%s.%d", parentBranch, branchID)
	sym := g.unnamedSymbolFor(key, symbolDepth(parentBranch, true))
	rev.Branch = NewTag(sym, parentRev, TagBranch, branchID)
	return fmt.Sprintf("%s: revision %s on unnamed branch", f.Path, rev.Rev), nil
}

// FindBranchTag looks up the Tag of branch kind with the given leaf id
// among the Tags referencing rev, or nil if none is registered yet.
func FindBranchTag(rev *Revision, leaf int) *Tag {
	return findBranchTag(rev, leaf)
}

// findBranchTag looks up the Tag of branch kind with the given leaf id
// among the Tags referencing rev.
func findBranchTag(rev *Revision, leaf int) *Tag {
	for _, v := range rev.Tags.Values() {
		t := v.(*Tag)
		if (t.Kind == TagBranch || t.Kind == TagVendorBranch) && t.BranchID == leaf {
			return t
		}
	}
	return nil
}

// leafOf returns the final dotted component of rev, or 0 if rev has
// only one component (the trunk root "1").
func leafOf(rev string) int {
	_, leaf, ok := revstring.GetBranchExt(rev)
	if !ok {
		return 0
	}
	return leaf
}

// AssignPreRevision implements the original assign_pre_revision(psm,
// rev): curRev is the revision already built from the current log
// entry; olderRev is the next (chronologically older) revision read
// from the same file's reverse log stream, or nil if curRev was the
// oldest revision seen for this file. When both share the same branch
// prefix they link directly as prev/next; otherwise the parent is
// derived from curRev's resolved branch Tag and curRev is recorded
// among that revision's branch_children. A leaf id of 1 marks the
// first revision on a branch, so a missing parent there is silent;
// any other missing parent is reported via the returned warning
// (non-fatal).
func AssignPreRevision(curRev, olderRev *Revision) (warning string) {
	if curRev == nil {
		return ""
	}

	if olderRev == nil {
		if curRev.Branch != nil && curRev.Branch.Rev != nil {
			curRev.PrevRev = curRev.Branch.Rev
			curRev.Branch.Rev.BranchChildren.Add(curRev)
			return ""
		}
		if leafOf(curRev.Rev) == 1 {
			return ""
		}
		return fmt.Sprintf("%s: cannot find parent for revision %s; assuming initial", curRev.File.Path, curRev.Rev)
	}

	curBranch, _ := revstring.GetBranch(curRev.Rev)
	olderBranch, ok := revstring.GetBranch(olderRev.Rev)
	if !ok {
		return fmt.Sprintf("%s: malformed revision %s", olderRev.File.Path, olderRev.Rev)
	}
	if curBranch == olderBranch {
		curRev.PrevRev = olderRev
		olderRev.NextRev = curRev
		return ""
	}

	var warn string
	if leafOf(curRev.Rev) != 1 {
		warn = fmt.Sprintf("%s: no branch parent for %s", curRev.File.Path, curRev.Rev)
	}
	if curRev.Branch != nil && curRev.Branch.Rev != nil {
		curRev.PrevRev = curRev.Branch.Rev
		curRev.Branch.Rev.BranchChildren.Add(curRev)
	}
	return warn
}

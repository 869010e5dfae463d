// Package resolve implements spec.md §4.5: for every project-wide
// Symbol, pick the PatchSet its tag(s) resolve to and classify
// anomalous placements (SPLIT/LATE/FUNKY/INVALID).
package resolve

import (
	"fmt"

	"github.com/cvspsgo/cvsps/internal/patchset"
	"github.com/cvspsgo/cvsps/internal/rcsgraph"
	"github.com/cvspsgo/cvsps/internal/revstring"
	"github.com/sirupsen/logrus"
)

// Result carries back the psid bounds and implicit branch spec.md §6's
// `-r` flag resolves to, grounded on cvsps.c's restrict_tag_start/
// restrict_tag_end globals: cmd/cvsps feeds these (via
// internal/pipeline's Result) into internal/emit's psid and branch
// filters.
type Result struct {
	TagStartPSID   int // 0 if tagStart was unset or unresolved
	TagEndPSID     int // 0 if tagEnd was unset or unresolved
	ImplicitBranch string
}

// Resolve walks every Symbol in g, grounded on resolve_global_symbols:
// a first pass picks the highest-psid PatchSet any of the Symbol's
// Tags resolves to, a second pass classifies each Tag against that
// choice. strict mirrors the `-F` flag (spec.md §4.5, §6): when unset,
// a contradicting later revision is reported as FUNKY; when set, it
// is promoted to INVALID. tagStart/tagEnd are the `-r` flag's symbol
// names (spec.md §6); when non-empty, the patch sets they resolve to
// are recorded in the returned Result, and the funky/invalid walk
// additionally marks the intervening patch sets and members with
// FunkFactor/BadFunk per check_tag_funk.
func Resolve(g *rcsgraph.Graph, strict bool, tagStart, tagEnd string, logger *logrus.Logger) Result {
	var result Result
	for _, sym := range g.Symbols {
		resolveSymbol(sym, strict, tagStart, tagEnd, &result, logger)
	}
	return result
}

func tagsOf(sym *rcsgraph.Symbol) []*rcsgraph.Tag {
	vals := sym.Tags.Values()
	out := make([]*rcsgraph.Tag, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.(*rcsgraph.Tag))
	}
	return out
}

func resolveSymbol(sym *rcsgraph.Symbol, strict bool, tagStart, tagEnd string, result *Result, logger *logrus.Logger) {
	var best *patchset.PatchSet
	var candidates []*rcsgraph.Tag

	for _, tag := range tagsOf(sym) {
		if !tag.Rev.Present {
			logger.Warnf("%s: revision %s of file %s is tagged but not present",
				sym.Name, tag.Rev.Rev, tag.Rev.File.Path)
			sym.Tags.Remove(tag)
			continue
		}
		candidates = append(candidates, tag)

		tag.DeadInit = isDeadInit(tag)
		if tag.DeadInit {
			continue
		}
		ps, ok := tag.Rev.PatchSet.(*patchset.PatchSet)
		if !ok || ps == nil {
			continue
		}
		if best == nil || ps.ID > best.ID {
			best = ps
		}
	}

	if best == nil {
		if sym.Name != "" {
			logger.Warnf("no patchset for tag %s", sym.Name)
		}
		sym.PatchSet = nil
		return
	}
	sym.PatchSet = best
	sym.Flags = 0

	if sym.Name != "" && sym.Name == tagStart {
		result.TagStartPSID = best.ID
	}
	if sym.Name != "" && sym.Name == tagEnd {
		result.TagEndPSID = best.ID
		if result.ImplicitBranch == "" && best.Branch != nil {
			result.ImplicitBranch = best.Branch.Name
		}
	}

	restrictKind := restrictNone
	switch {
	case sym.Name != "" && sym.Name == tagStart:
		restrictKind = restrictStart
	case sym.Name != "" && sym.Name == tagEnd:
		restrictKind = restrictEnd
	}
	for _, tag := range candidates {
		classifyTag(sym, best, tag, strict, restrictKind, logger)
	}
}

// restrictKind identifies whether the Symbol being classified is the
// `-r` start tag, end tag, or neither (spec.md §6, §4.7).
type restrictKindT int

const (
	restrictNone restrictKindT = iota
	restrictStart
	restrictEnd
)

// isDeadInit implements spec.md §4.5's dead_init rule: a tag whose
// revision is the synthetic branch_add record, or whose own Kind marks
// a vendor branch, logically predates the file's existence on this
// branch. A branch-kind tag additionally inherits dead_init from the
// first revision actually committed on the branch it names.
func isDeadInit(tag *rcsgraph.Tag) bool {
	if tag.Rev.BranchAdd {
		return true
	}
	if tag.Kind == rcsgraph.TagVendorBranch {
		return true
	}
	if tag.Kind == rcsgraph.TagBranch {
		if first := firstRevisionOnBranch(tag); first != nil && first.BranchAdd {
			return true
		}
	}
	return false
}

// firstRevisionOnBranch returns the first commit on the branch tag
// names -- the branch_children entry of tag.Rev whose own Branch is
// tag itself -- or nil if the branch has no commits yet.
func firstRevisionOnBranch(tag *rcsgraph.Tag) *rcsgraph.Revision {
	if tag.Rev == nil {
		return nil
	}
	for _, v := range tag.Rev.BranchChildren.Values() {
		child := v.(*rcsgraph.Revision)
		if child.Branch == tag {
			return child
		}
	}
	return nil
}

// effectiveRevision implements spec.md §4.5's vendor-shadow
// substitution: "If a Revision has a vendor shadow that sits before
// the selected ps and the current branch's patch set does not already
// match, the shadow replaces the Revision for further checks."
func effectiveRevision(rev *rcsgraph.Revision, ps *patchset.PatchSet) *rcsgraph.Revision {
	if rev.VendorShadow == nil {
		return rev
	}
	shadowPS, ok := rev.VendorShadow.PatchSet.(*patchset.PatchSet)
	if !ok || shadowPS == nil || shadowPS.ID >= ps.ID {
		return rev
	}
	if rev.Branch != nil && ps.Branch == rev.Branch.Sym {
		return rev // current branch's patch set already matches
	}
	return rev.VendorShadow
}

// followBranch implements rev_follow_branch: given rev, find the next
// revision that continues along branchSym -- rev's own next commit if
// rev is already on that branch, else the branch_children entry that
// starts it, else (for a branch-off-branch whose parent was never
// itself touched) the branch_children entry that descends from the
// branch's recorded start revision on rev's file.
func followBranch(rev *rcsgraph.Revision, branchSym *rcsgraph.Symbol) *rcsgraph.Revision {
	if rev == nil {
		return nil
	}
	if branchSym == nil {
		// nil stands for the trunk/HEAD pseudo-branch (no GlobalSymbol in
		// this model, unlike the original's real &head_sym sentinel): a
		// revision continues along it only while it has no Branch of its
		// own.
		if rev.Branch == nil {
			return rev.NextRev
		}
		return nil
	}
	if rev.Branch != nil && rev.Branch.Sym == branchSym {
		return rev.NextRev
	}
	for _, v := range rev.BranchChildren.Values() {
		child := v.(*rcsgraph.Revision)
		if child.Branch != nil && child.Branch.Sym == branchSym {
			return child
		}
	}
	if branchSym.Name == "" {
		return nil
	}
	fileTag, ok := rev.File.Symbols[branchSym.Name]
	if !ok {
		return nil
	}
	symRev := symbolRevisionString(fileTag)
	for _, v := range rev.BranchChildren.Values() {
		child := v.(*rcsgraph.Revision)
		if revstring.AffectsRevision(child.Rev, symRev) {
			return child
		}
	}
	return nil
}

// symbolRevisionString implements get_sym_revision: the dotted
// revision string a Tag actually names -- its base revision, plus its
// branch leaf id if it is a branch-kind tag.
func symbolRevisionString(tag *rcsgraph.Tag) string {
	if tag.Rev == nil {
		return ""
	}
	if tag.Kind == rcsgraph.TagStatic {
		return tag.Rev.Rev
	}
	return fmt.Sprintf("%s.%d", tag.Rev.Rev, tag.BranchID)
}

// classifyTag implements spec.md §4.5's second pass, grounded on
// resolve_global_symbols's violation loop and check_tag_funk's
// forward walk. restrictKind marks that tag's symbol is the `-r`
// start or end tag: the forward walk then also downgrades each
// intervening PatchSet's FunkFactor (spec.md §4.7 "funk_factor
// overrides the -r bounds") and flags the specific contradicting
// member with BadFunk, per check_tag_funk.
func classifyTag(sym *rcsgraph.Symbol, ps *patchset.PatchSet, tag *rcsgraph.Tag, strict bool, restrictKind restrictKindT, logger *logrus.Logger) {
	rev := effectiveRevision(tag.Rev, ps)

	// TAG_LATE is evaluated independently of reachability: a branch
	// tag whose own first commit already happened at or before the
	// patch set the tag resolves to is late, whether or not the tag's
	// own revision can still reach that branch going forward.
	if tag.Kind == rcsgraph.TagBranch {
		if first := firstRevisionOnBranch(tag); first != nil {
			if firstPS, ok := first.PatchSet.(*patchset.PatchSet); ok && firstPS != nil && firstPS.ID <= ps.ID {
				tag.Flags |= rcsgraph.FlagLate
				sym.Flags |= rcsgraph.FlagLate
			}
		}
	}

	// A revision already on ps's branch leads there even when it is the
	// last revision of that branch (followBranch then returns nil).
	onBranch := (ps.Branch == nil && rev.Branch == nil) ||
		(rev.Branch != nil && rev.Branch.Sym == ps.Branch)
	next := followBranch(rev, ps.Branch)
	if next == nil && !onBranch {
		tag.Flags |= rcsgraph.FlagSplit
		sym.Flags |= rcsgraph.FlagSplit
		logger.Warnf("%s: tag %s on %s has no path to its resolved patch set (nearest ancestor branch: %s)",
			tag.Rev.File.Path, sym.Name, tag.Rev.Rev, ancestorBranch(tag))
		return
	}

	invalid := false
	violations := 0
	for next != nil {
		nextPS, ok := next.PatchSet.(*patchset.PatchSet)
		if !ok || nextPS == nil || nextPS.ID > ps.ID {
			break
		}
		localViolation := false
		for _, m := range nextPS.MemberList() {
			fileTag, ok := m.File.Symbols[sym.Name]
			if !ok {
				continue
			}
			symRev := symbolRevisionString(fileTag)
			if revstring.AffectsRevision(m.Rev, symRev) {
				violations++
				localViolation = true
				if strict && memberContradictsTag(m, symRev) {
					invalid = true
				}
				if restrictKind != restrictNone {
					m.BadFunk = true
				}
			}
		}
		if restrictKind != restrictNone {
			applyFunkFactor(nextPS, restrictKind, localViolation)
		}
		next = followBranch(next, ps.Branch)
	}

	if violations == 0 {
		return
	}
	flag := rcsgraph.FlagFunky
	if invalid {
		flag = rcsgraph.FlagInvalid
	}
	tag.Flags |= flag
	sym.Flags |= flag
}

// ancestorBranch is a diagnostic-only helper that walks tag.Rev's own
// Branch chain up to the nearest named branch, for use solely in the
// TAG_SPLIT warning message; it plays no part in resolution itself.
func ancestorBranch(tag *rcsgraph.Tag) string {
	rev := tag.Rev
	for depth := 0; rev != nil && depth < 64; depth++ {
		if rev.Branch == nil {
			return "trunk"
		}
		if rev.Branch.Sym != nil && rev.Branch.Sym.Name != "" {
			return rev.Branch.Sym.Name
		}
		rev = rev.Branch.Rev
	}
	return "unknown"
}

// applyFunkFactor implements check_tag_funk's default-visibility rule
// for a PatchSet that falls between an `-r` start/end tag and the
// patch set the tag itself resolves to: such a PatchSet is normally
// hidden entirely if it precedes the start tag (it touches files the
// tag predates) or shown entirely if it precedes the end tag, except
// that a PatchSet containing a member which actually affects the tag
// revision is the boundary case and gets the partial (*_SOME) variant
// instead, so its individually flagged (BadFunk) members can still be
// displayed or suppressed on their own.
func applyFunkFactor(ps *patchset.PatchSet, kind restrictKindT, violated bool) {
	switch kind {
	case restrictStart:
		if violated {
			ps.FunkFactor = patchset.FnkShowSome
		} else if ps.FunkFactor == patchset.FnkNone {
			ps.FunkFactor = patchset.FnkHideAll
		}
	case restrictEnd:
		if violated {
			ps.FunkFactor = patchset.FnkHideSome
		} else if ps.FunkFactor == patchset.FnkNone {
			ps.FunkFactor = patchset.FnkShowAll
		}
	}
}

// memberContradictsTag implements the `-F` strictness refinement
// (spec.md §4.5 "if the -F strictness flag is active, check whether
// any such later revision contradicts the tag (invalid) versus merely
// post-dating it (funky)"): the caller only passes members that lie on
// the ancestor line of the tagged revision, and such a member
// contradicts the tag when it is a different revision (a strict
// ancestor committed later than the tag's patch set) rather than the
// tagged revision itself re-encountered.
func memberContradictsTag(m *rcsgraph.Revision, symRev string) bool {
	return revstring.Compare(m.Rev, symRev) != 0
}

package emit

import (
	"fmt"
	"io"

	"github.com/cvspsgo/cvsps/internal/patchset"
	"github.com/cvspsgo/cvsps/internal/rcsgraph"
)

// NoBranch is the trunk's display name, grounded on
// BRANCH_NAME/PS_BRANCH's "#CVSPS_NO_BRANCH" fallback for a nil branch.
const NoBranch = "#CVSPS_NO_BRANCH"

// DateLayout is the default "Date:" header rendering (spec.md §6);
// internal/config.Options.DateFmt overrides it via WriteSummary's
// layout argument.
const DateLayout = "2006/01/02 15:04:05"

// TagIndex groups every Symbol whose resolved PatchSet is a given
// patch set, for WriteSummary's "[Tag: ...]" block.
type TagIndex map[*patchset.PatchSet][]*rcsgraph.Symbol

// BuildTagIndex scans symbols once and returns the TagIndex WriteSummary
// needs, avoiding an O(patchsets*symbols) scan per patch set printed.
func BuildTagIndex(symbols map[string]*rcsgraph.Symbol) TagIndex {
	idx := make(TagIndex)
	for _, sym := range symbols {
		ps, ok := sym.PatchSet.(*patchset.PatchSet)
		if !ok || ps == nil {
			continue
		}
		idx[ps] = append(idx[ps], sym)
	}
	return idx
}

// WriteSummary writes one patch set's text block, grounded on
// print_patch_set (spec.md §6's literal block format). layout is the
// "Date:" rendering format; "" selects DateLayout.
func WriteSummary(w io.Writer, ps *patchset.PatchSet, tags TagIndex, layout string) {
	if layout == "" {
		layout = DateLayout
	}

	fmt.Fprintln(w, "---------------------")
	if label := patchset.FunkLabel(ps.FunkFactor); label != "" {
		fmt.Fprintf(w, "PatchSet %d %s\n", ps.ID, label)
	} else {
		fmt.Fprintf(w, "PatchSet %d\n", ps.ID)
	}
	fmt.Fprintf(w, "Date: %s\n", ps.Date.Format(layout))
	fmt.Fprintf(w, "Author: %s\n", ps.Author)
	fmt.Fprintf(w, "Branch: %s\n", branchName(ps))
	if ps.VendorShadowed != nil {
		fmt.Fprintf(w, "Vendor Merge: %d\n", ps.VendorShadowed.ID)
	}
	fmt.Fprintf(w, "Log:\n%s\n", ps.Descr)
	fmt.Fprintln(w, "Members:")
	for _, m := range ps.MemberList() {
		prev := "INITIAL"
		if m.PrevRev != nil {
			prev = m.PrevRev.Rev
		}
		dead := ""
		if m.Dead {
			dead = "(DEAD)"
		}
		fmt.Fprintf(w, "\t%s:%s->%s%s%s\n", m.File.Path, prev, m.Rev, dead, memberFunkAnnotation(ps, m))
	}

	for _, sym := range tags[ps] {
		if label := rcsgraph.FlagLabel(sym.Flags); label != "" {
			fmt.Fprintf(w, "Tag: %s %s\n", sym.Name, label)
		} else {
			fmt.Fprintf(w, "Tag: %s\n", sym.Name)
		}
		for _, v := range sym.Tags.Values() {
			tag := v.(*rcsgraph.Tag)
			dead := ""
			if tag.Rev.Dead {
				dead = "(DEAD)"
			}
			var psid int
			if tagPS, ok := tag.Rev.PatchSet.(*patchset.PatchSet); ok && tagPS != nil {
				psid = tagPS.ID
			}
			fmt.Fprintf(w, "\t%s:%s%s#%d\n", tag.Rev.File.Path, tag.Rev.Rev, dead, psid)
		}
	}

	fmt.Fprintln(w)
}

func branchName(ps *patchset.PatchSet) string {
	if ps.Branch == nil {
		return NoBranch
	}
	return ps.Branch.Name
}

// memberFunkAnnotation implements print_patch_set's per-member funk
// annotation: a FNK_SHOW_SOME patch set marks its BadFunk member
// "(BEFORE START TAG)"; a FNK_HIDE_SOME patch set marks every *other*
// member "(AFTER END TAG)".
func memberFunkAnnotation(ps *patchset.PatchSet, m *rcsgraph.Revision) string {
	switch {
	case ps.FunkFactor == patchset.FnkShowSome && m.BadFunk:
		return " (BEFORE START TAG)"
	case ps.FunkFactor == patchset.FnkHideSome && !m.BadFunk:
		return " (AFTER END TAG)"
	default:
		return ""
	}
}

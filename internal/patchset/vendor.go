package patchset

import (
	"time"

	"github.com/cvspsgo/cvsps/internal/intern"
	"github.com/cvspsgo/cvsps/internal/rcsgraph"
	"github.com/cvspsgo/cvsps/internal/revstring"
)

// initialRevisionDescr is the log message CVS writes for a file's very
// first commit; it is the marker assign_patch_set's caller uses to
// recognize the revision a vendor import lands on top of (spec.md §4.3
// "Vendor shadows").
const initialRevisionDescr = "Initial revision\n"

// SynthesizeVendorShadows implements spec.md §4.3's vendor-shadow
// paragraph. It must run once the whole Graph is built (every
// Revision's Branch/PrevRev/NextRev/PatchSet resolved), so it is a
// separate pass rather than something Visit can do per-record: the
// trigger ("parent is older than the child" with the parent on an
// "Initial revision" patch set) can only be evaluated once a vendor
// revision's branch parent has itself been fully assigned a PatchSet,
// which under single-pass reverse-chronological parsing isn't true yet
// at the moment the vendor revision itself is visited.
//
// No function in the available original source performs this loop
// (only the Revision.vendor_shadow / PatchSet.vendor_shadowed struct
// fields survive in cvsps_types.h); the algorithm below is a direct
// reading of spec.md's prose grounded on those fields' shapes.
func (a *Aggregator) SynthesizeVendorShadows(g *rcsgraph.Graph) {
	for _, f := range g.Files {
		for _, rev := range f.Revisions {
			a.maybeShadowBranch(rev)
		}
	}
}

func (a *Aggregator) maybeShadowBranch(rev *rcsgraph.Revision) {
	branch, ok := revstring.GetBranch(rev.Rev)
	if !ok || !revstring.IsVendorBranch(branch) {
		return
	}
	// Every branch id ("1.2.2") has an even dot count, so the check above
	// alone also admits ordinary branches; the branch Tag's kind decides.
	if rev.Branch == nil || rev.Branch.Rev == nil || rev.Branch.Kind != rcsgraph.TagVendorBranch {
		return
	}
	parent := rev.Branch.Rev
	if parent.ImportAdd {
		return // already shadowed via another vendor revision on this branch
	}
	parentPS, ok := parent.PatchSet.(*PatchSet)
	if !ok || parentPS == nil || parentPS.Descr != initialRevisionDescr {
		return
	}
	if parent.Date.After(rev.Date) {
		return
	}

	until := time.Now()
	if parent.NextRev != nil {
		until = parent.NextRev.Date
	}

	parent.ImportAdd = true
	prev := parent
	for _, vrev := range vendorSiblingsOldestFirst(parent.File, branch) {
		if !vrev.Date.Before(until) {
			continue
		}
		prev = a.addShadow(prev, vrev)
	}
}

// vendorSiblingsOldestFirst returns every Revision of f whose branch
// truncation equals branch, oldest first.
func vendorSiblingsOldestFirst(f *rcsgraph.File, branch string) []*rcsgraph.Revision {
	var out []*rcsgraph.Revision
	for _, r := range f.Revisions {
		if b, ok := revstring.GetBranch(r.Rev); ok && b == branch {
			out = append(out, r)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Date.Before(out[j-1].Date); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// addShadow synthesizes one shadow Revision of vrev on vrev's parent
// branch, chained after prev, and gives it its own PatchSet backed by
// vrev's vendor one.
func (a *Aggregator) addShadow(prev, vrev *rcsgraph.Revision) *rcsgraph.Revision {
	shadow := &rcsgraph.Revision{
		File:           vrev.File,
		Rev:            vrev.Rev,
		Date:           vrev.Date,
		Dead:           vrev.Dead,
		Shadow:         true,
		PrevRev:        prev,
		BranchChildren: intern.NewOrderedSet(),
		Tags:           intern.NewOrderedSet(),
	}
	prev.NextRev = shadow
	vrev.VendorShadow = shadow

	vendorPS, ok := vrev.PatchSet.(*PatchSet)
	if !ok || vendorPS == nil {
		return shadow
	}

	a.nextID++
	shadowPS := &PatchSet{
		ID:             a.nextID,
		Date:           vrev.Date,
		Author:         vendorPS.Author,
		Descr:          vendorPS.Descr,
		Members:        intern.NewOrderedSet(),
		hasRange:       true,
		MinDate:        vrev.Date.Add(-a.FuzzFactor),
		MaxDate:        vrev.Date.Add(a.FuzzFactor),
		VendorShadowed: vendorPS,
	}
	shadowPS.Members.Add(shadow)
	shadow.PatchSet = shadowPS
	a.all = append(a.all, shadowPS)

	return shadow
}

// Package emit implements spec.md §4.7: the ordered filter-predicate
// chain applied to each patch set in final emit order, and the text
// block formatter of §6.
package emit

import (
	"fmt"
	"regexp"
	"time"

	"github.com/cvspsgo/cvsps/internal/config"
	"github.com/cvspsgo/cvsps/internal/patchset"
)

// Filters holds the compiled predicate chain spec.md §4.7 evaluates in
// order for each patch set in emit order: branch_add suppression;
// funk_factor override of the `-r` bounds; psid within `-r` bounds;
// date within `-d` bounds; author equals `-a`; log matches `-l`; at
// least one member filename matches `-f`; `-b` branch match; psid
// within any `-s` range.
type Filters struct {
	// TagStartPSID/TagEndPSID are the psids internal/resolve.Result
	// resolved the `-r` start/end tags to; 0 means unbounded on that
	// side.
	TagStartPSID int
	TagEndPSID   int

	DateLo, DateHi time.Time
	Author         string
	Branch         string
	Ranges         []config.PatchSetRange

	fileRe *regexp.Regexp
	logRe  *regexp.Regexp
}

// NewFilters compiles opts' `-f`/`-l` regexes (stdlib regexp: no
// ecosystem library in the retrieved corpus offers a Go regex engine
// beyond the standard one) and copies the remaining predicate fields
// from opts and the resolved `-r` tag psids.
func NewFilters(opts config.Options, tagStartPSID, tagEndPSID int) (*Filters, error) {
	f := &Filters{
		TagStartPSID: tagStartPSID,
		TagEndPSID:   tagEndPSID,
		DateLo:       opts.DateLo,
		DateHi:       opts.DateHi,
		Author:       opts.Author,
		Branch:       opts.Branch,
		Ranges:       opts.Ranges,
	}
	if opts.FileRe != "" {
		re, err := regexp.Compile(opts.FileRe)
		if err != nil {
			return nil, fmt.Errorf("emit: invalid -f regex %q: %w", opts.FileRe, err)
		}
		f.fileRe = re
	}
	if opts.LogRe != "" {
		re, err := regexp.Compile(opts.LogRe)
		if err != nil {
			return nil, fmt.Errorf("emit: invalid -l regex %q: %w", opts.LogRe, err)
		}
		f.logRe = re
	}
	return f, nil
}

// Allowed implements spec.md §4.7's ordered filter chain for one patch
// set in emit order: the first failing predicate skips it.
func (f *Filters) Allowed(ps *patchset.PatchSet) bool {
	if ps.BranchAdd {
		return false
	}

	inBounds := f.psidInTagBounds(ps.ID)
	switch ps.FunkFactor {
	case patchset.FnkShowAll, patchset.FnkShowSome:
		inBounds = true
	case patchset.FnkHideAll:
		inBounds = false
	}
	if !inBounds {
		return false
	}

	if !f.DateLo.IsZero() && ps.Date.Before(f.DateLo) {
		return false
	}
	if !f.DateHi.IsZero() && ps.Date.After(f.DateHi) {
		return false
	}
	if f.Author != "" && ps.Author != f.Author {
		return false
	}
	if f.logRe != nil && !f.logRe.MatchString(ps.Descr) {
		return false
	}
	if f.fileRe != nil && !f.anyMemberMatches(ps) {
		return false
	}
	if f.Branch != "" && f.branchName(ps) != f.Branch {
		return false
	}
	if len(f.Ranges) > 0 && !f.inAnyRange(ps.ID) {
		return false
	}
	return true
}

func (f *Filters) psidInTagBounds(psid int) bool {
	if f.TagStartPSID != 0 && psid < f.TagStartPSID {
		return false
	}
	if f.TagEndPSID != 0 && psid > f.TagEndPSID {
		return false
	}
	return true
}

func (f *Filters) anyMemberMatches(ps *patchset.PatchSet) bool {
	for _, m := range ps.MemberList() {
		if f.fileRe.MatchString(m.File.Path) {
			return true
		}
	}
	return false
}

func (f *Filters) branchName(ps *patchset.PatchSet) string {
	if ps.Branch == nil {
		return NoBranch
	}
	return ps.Branch.Name
}

func (f *Filters) inAnyRange(psid int) bool {
	for _, r := range f.Ranges {
		if r.Contains(psid) {
			return true
		}
	}
	return false
}

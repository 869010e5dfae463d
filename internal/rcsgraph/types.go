// Package rcsgraph builds the per-file revision/tag/symbol graph
// described in spec.md §3 and §4.2: File, Revision, Tag, and Symbol,
// their structural links (prev/next, branch_children, tag lists), and
// the branch/vendor classification rules applied while parsing.
package rcsgraph

import (
	"time"

	"github.com/cvspsgo/cvsps/internal/intern"
	"github.com/sirupsen/logrus"
)

// TagKind distinguishes the three shapes a symbolic name can take on a
// revision, replacing the signed-magnitude branch id of the original
// implementation with an explicit tagged enum (spec.md §9).
type TagKind int

const (
	// TagStatic is a plain (non-branch) tag at a fixed revision.
	TagStatic TagKind = iota
	// TagBranch is a branch tag (magic branch tag or descended-from-trunk branch).
	TagBranch
	// TagVendorBranch is a vendor-branch tag (negative branch id in spec.md's model).
	TagVendorBranch
)

// Tag flag bits, set during symbol resolution (spec.md §4.5).
const (
	FlagSplit = 1 << iota
	FlagInvalid
	FlagFunky
	FlagLate
)

// FlagLabel returns the output label for flags, choosing the
// lowest-set of the four anomaly bits per spec.md §4.5 "Output
// formatting uses the first-set bit of the flag bitset", or "" if none
// are set.
func FlagLabel(flags int) string {
	switch {
	case flags&FlagSplit != 0:
		return "**SPLIT**"
	case flags&FlagInvalid != 0:
		return "**INVALID**"
	case flags&FlagFunky != 0:
		return "**FUNKY**"
	case flags&FlagLate != 0:
		return "**LATE**"
	}
	return ""
}

// File is a per-path owner of Revisions and Tags. Files are allocated
// once per path on first sighting and never destroyed before shutdown
// (spec.md §3).
type File struct {
	Path         string
	Revisions    map[string]*Revision // revision string -> Revision
	Symbols      map[string]*Tag      // tag name -> Tag
	HeadTag      *Tag
	HaveBranches bool // distinguishes symbol-table build phase from revision-log phase
	Logger       *logrus.Logger
}

// NewFile allocates an empty File for path.
func NewFile(path string, logger *logrus.Logger) *File {
	return &File{
		Path:      path,
		Revisions: make(map[string]*Revision),
		Symbols:   make(map[string]*Tag),
		Logger:    logger,
	}
}

// Revision returns the Revision for rev, creating it on first mention
// (spec.md §3 "created on first mention").
func (f *File) Revision(rev string) *Revision {
	if r, ok := f.Revisions[rev]; ok {
		return r
	}
	r := &Revision{
		File:           f,
		Rev:            rev,
		BranchChildren: intern.NewOrderedSet(),
		Tags:           intern.NewOrderedSet(),
	}
	f.Revisions[rev] = r
	return r
}

// Revision is one node of a File's revision tree (spec.md §3).
type Revision struct {
	File *File
	Rev  string
	Date time.Time

	Dead      bool
	Present   bool // confirmed by an actual log entry, not only a symbolic reference
	BranchAdd bool // the synthetic "initially added on branch" record
	ImportAdd bool // trunk revision that was the source of a vendor import
	Shadow    bool // a synthetic copy onto the parent branch

	Branch         *Tag // the branch Tag this revision is on
	PrevRev        *Revision
	NextRev        *Revision
	BranchChildren *intern.OrderedSet // ordered set of *Revision, first rev of each diverging branch
	Tags           *intern.OrderedSet // ordered set of *Tag referencing this revision
	VendorShadow   *Revision          // synthesized copy on the parent branch, if any

	PatchSet PatchSetRef // assigned by internal/patchset during aggregation

	// BadFunk marks a member individually flagged by internal/resolve
	// while evaluating the `-r` start/end tags against a funky/invalid
	// patch set (spec.md §4.5, §4.7 "funk_factor"); internal/emit uses
	// it to annotate or exclude that one member specifically.
	BadFunk bool
}

// AddTag records that tag references this revision.
func (r *Revision) AddTag(tag *Tag) {
	r.Tags.Add(tag)
}

// PatchSetRef is the narrow view of internal/patchset.PatchSet that
// rcsgraph needs to hold back-references without importing that
// package (which itself imports rcsgraph for File/Revision/Tag/Symbol).
type PatchSetRef interface {
	PSID() int
}

// Symbol is a project-wide symbolic name shared across files (spec.md §3).
type Symbol struct {
	Name     string      // empty until named; unnamed branches are named later
	PatchSet PatchSetRef // resolved patch set, or nil
	Depth    int         // 2 = trunk, 3 = branch off trunk, ...; low bit marks branch kind
	Flags    int
	Tags     *intern.OrderedSet // ordered set of *Tag under this symbol

	// PatchSets holds, for a branch-kind Symbol with commits, the
	// ordered list of PatchSets on that branch (populated by
	// internal/order).
	PatchSets []PatchSetRef
}

// NewSymbol allocates an (initially anonymous) Symbol.
func NewSymbol(depth int) *Symbol {
	return &Symbol{Depth: depth, Tags: intern.NewOrderedSet()}
}

// IsBranch reports whether this symbol is of branch kind (depth's low bit set).
func (s *Symbol) IsBranch() bool {
	return s.Depth&1 == 1
}

// Tag is an occurrence of a symbolic name on one Revision of one File
// (spec.md §3).
type Tag struct {
	Sym      *Symbol
	Rev      *Revision
	Kind     TagKind
	BranchID int // magnitude of the branch leaf id; 0 for a static tag
	Flags    int
	DeadInit bool // the tag references a file before it existed
}

// NewTag creates a Tag under sym pointing at rev, registers it on both
// the Symbol and the Revision, and returns it.
func NewTag(sym *Symbol, rev *Revision, kind TagKind, branchID int) *Tag {
	t := &Tag{Sym: sym, Rev: rev, Kind: kind, BranchID: branchID}
	sym.Tags.Add(t)
	rev.AddTag(t)
	return t
}

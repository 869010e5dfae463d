package logparse

import (
	"strings"

	"github.com/cvspsgo/cvsps/internal/rcsgraph"
	"github.com/cvspsgo/cvsps/internal/revstring"
)

// parseSym handles one line of a "symbolic names:" block: leading
// whitespace, then "<tag>: <dotted>;\n" (spec.md §4.2), grounded on
// parse_sym. The trailing ";\n" is trimmed before the revision string
// reaches revstring, since Go's strconv.Atoi (unlike C's atoi) refuses
// a string with trailing non-digit bytes.
func (p *Parser) parseSym(file *rcsgraph.File, line string) {
	tag := strings.TrimLeft(line, " \t")
	if tag == "" {
		return
	}
	colon := strings.IndexByte(tag, ':')
	if colon < 0 {
		return
	}
	name := tag[:colon]
	dotted := strings.TrimPrefix(tag[colon+1:], " ")
	dotted = strings.TrimSuffix(dotted, "\n")
	dotted = strings.TrimSuffix(dotted, ";")

	if name == "TRUNK" {
		p.Logger.Debugf("ignoring the TRUNK branch/tag")
		return
	}
	p.Graph.AddSymbolEntry(file, name, dotted)
}

// parseBranches handles a `branches:  <b>;<b>;…` metadata line
// (spec.md §4.1), warning about any entry with no matching branch tag
// yet on the current revision. The actual synthesis of an anonymous
// branch Tag for such a branch happens later, when a revision on it is
// finalized under `-U` (rcsgraph.FinalizeRevisionBranch) — this line
// alone only flags the absence, grounded on load_from_cvs's NEED_EOM
// "branches:" handling.
func (p *Parser) parseBranches(file *rcsgraph.File, rev *rcsgraph.Revision, line string) {
	if rev == nil {
		return
	}
	rest := strings.TrimPrefix(line, "branches:  ")
	rest = strings.TrimSuffix(rest, "\n")
	for _, b := range strings.Split(rest, ";") {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		branchRev, leaf, ok := revstring.GetBranchExt(b)
		if !ok {
			continue
		}
		branchParent := file.Revision(branchRev)
		if rcsgraph.FindBranchTag(branchParent, leaf) == nil {
			p.Logger.Warnf("%s: unnamed branch %s", file.Path, b)
		}
	}
}

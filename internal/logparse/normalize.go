package logparse

import (
	"strings"

	"github.com/cvspsgo/cvsps/internal/rcsgraph"
)

// parseRCSFile handles an "RCS file: <path>,v" line, stripping the
// ",v" suffix and the discovered strip_path prefix, and removing a
// trailing Attic/ directory segment (spec.md §4.1 "Normalization of
// RCS file paths"), grounded on parse_rcs_file. Returns nil if the
// reported path doesn't match strip_path and no alternate could be
// reconciled, signalling the caller to fall back to expect-working-file.
func (p *Parser) parseRCSFile(line string) *rcsgraph.File {
	body := strings.TrimPrefix(line, "RCS file: ")
	body = strings.TrimLeft(body, " ")
	body = strings.TrimSuffix(body, "\n")
	body = strings.TrimSuffix(body, ",v")

	if !strings.HasPrefix(body, p.stripPath) {
		if p.pathOK {
			p.Logger.Warnf("file %s doesn't match strip_path %s, ignoring", body, p.stripPath)
			return nil
		}
		if !p.reconcileStripPath(body) {
			p.Logger.Warnf("file %s doesn't match strip_path %s, ignoring", body, p.stripPath)
			return nil
		}
	}
	p.pathOK = true

	fn := body[len(p.stripPath):]
	fn = stripAttic(fn)
	return p.Graph.File(fn)
}

// reconcileStripPath implements the original's fallback: search for the
// final occurrence of the repository path inside the reported filename
// and adopt the prefix up to and including it as strip_path (spec.md
// §4.1, SPEC_FULL.md §D.2). Reports whether a usable prefix was found.
func (p *Parser) reconcileStripPath(fn string) bool {
	if p.RepositoryPath == "" {
		return false
	}
	last := -1
	from := 0
	for {
		idx := strings.Index(fn[from:], p.RepositoryPath)
		if idx < 0 {
			break
		}
		last = from + idx
		from = last + 1
	}
	if last < 0 {
		return false
	}
	p.stripPath = fn[:last+len(p.RepositoryPath)+1]
	p.Logger.Infof("NOTICE: used alternate strip path %s", p.stripPath)
	return true
}

// parseWorkingFile handles the older "Working file: <path>" form used
// when no "RCS file:" line matched strip_path.
func (p *Parser) parseWorkingFile(line string) *rcsgraph.File {
	fn := strings.TrimPrefix(line, "Working file: ")
	fn = strings.TrimSuffix(fn, "\n")
	fn = stripAttic(fn)
	return p.Graph.File(fn)
}

// stripAttic removes a trailing ".../Attic/name" segment, turning it
// into ".../name" (deleted files live under Attic in the underlying
// repository layout; spec.md §4.1), grounded on parse_rcs_file's
// strncmp(p - 5, "Attic", 5) check against the 5 bytes preceding the
// last slash.
func stripAttic(fn string) string {
	slash := strings.LastIndexByte(fn, '/')
	if slash < 5 {
		return fn
	}
	if fn[slash-5:slash] != "Attic" {
		return fn
	}
	return fn[:slash-5] + fn[slash+1:]
}

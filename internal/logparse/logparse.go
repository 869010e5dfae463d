// Package logparse implements the line-driven state machine described
// in spec.md §4.1: it turns a CVS/RCS revision-log text stream into
// calls against an internal/rcsgraph.Graph, and hands each completed
// revision record to a caller-supplied visitor for patch-set
// aggregation (internal/patchset). The teacher's GitParse pushes parsed
// commits onto a channel for a worker pool to drain; spec.md §5
// mandates single-threaded cooperative execution with no internal
// parallelism, so the visitor here is a synchronous callback instead.
package logparse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cvspsgo/cvsps/internal/rcsgraph"
	"github.com/cvspsgo/cvsps/internal/revstring"
	"github.com/sirupsen/logrus"
)

const (
	logBoundary  = "----------------------------\n"
	fileBoundary = "=============================================================================\n"
)

type state int

const (
	expectFile state = iota
	expectWorkingFile
	expectSymbols
	insideSymbols
	expectStartLog
	expectRevision
	expectDateAuthorState
	expectEndOfMessage
)

func (s state) String() string {
	switch s {
	case expectFile:
		return "expect-file"
	case expectWorkingFile:
		return "expect-working-file"
	case expectSymbols:
		return "expect-symbols"
	case insideSymbols:
		return "inside-symbols"
	case expectStartLog:
		return "expect-start-log"
	case expectRevision:
		return "expect-revision"
	case expectDateAuthorState:
		return "expect-date-author-state"
	case expectEndOfMessage:
		return "expect-end-of-message"
	}
	return "unknown"
}

// Record is one fully parsed revision-log entry, ready for patch-set
// aggregation (spec.md §4.3).
type Record struct {
	File   *rcsgraph.File
	Rev    *rcsgraph.Revision
	Date   time.Time
	Author string
	Log    string
}

// Visitor receives each Record as its revision log entry completes.
type Visitor func(Record)

// Parser drives the state machine over one log stream, building onto
// Graph as it goes.
type Parser struct {
	Graph  *rcsgraph.Graph
	Logger *logrus.Logger

	// RepositoryPath is the bare module/repository component (e.g.
	// "mod"), used only as the search key when the strip_path fallback
	// kicks in (spec.md §4.1, grounded on the "repository_path" global
	// in parse_rcs_file's alternate strip_path search).
	RepositoryPath string

	// AllowUnnamedBranches mirrors the `-U` flag (spec.md §6): when set,
	// a revision whose parent carries no branch Tag gets an anonymous
	// one synthesized instead of a fatal error (spec.md §4.2).
	AllowUnnamedBranches bool

	stripPath string
	pathOK    bool
}

// NewParser returns a Parser that builds onto graph. stripPath is the
// prefix to remove from every "RCS file:" path (precomputed by the
// caller from the resolved CVSROOT and repository path, grounded on
// cvsps.c's "%s/%s/" construction); repositoryPath is the bare
// module component used only by the strip_path-mismatch fallback
// (spec.md §4.1 "Normalization of RCS file paths").
func NewParser(graph *rcsgraph.Graph, logger *logrus.Logger, stripPath, repositoryPath string) *Parser {
	return &Parser{Graph: graph, Logger: logger, stripPath: stripPath, RepositoryPath: repositoryPath}
}

// Parse reads r to completion, calling visit for each revision record.
// It returns an error for any parser-state terminal mismatch or fatal
// graph-consistency failure (spec.md §4.1 "Failure semantics", §7).
func (p *Parser) Parse(r io.Reader, visit Visitor) error {
	br := bufio.NewReaderSize(r, 64*1024)

	st := expectFile
	var file *rcsgraph.File
	var rev *rcsgraph.Revision
	var prevRev *rcsgraph.Revision
	var date time.Time
	var author string
	var logBody strings.Builder
	haveLog := false

	for {
		line, rerr := br.ReadString('\n')
		if line == "" {
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return rerr
			}
		}

		switch st {
		case expectFile:
			if strings.HasPrefix(line, "RCS file: ") {
				if f := p.parseRCSFile(line); f != nil {
					file = f
					st = expectSymbols
				} else {
					st = expectWorkingFile
				}
			}

		case expectWorkingFile:
			if strings.HasPrefix(line, "Working file: ") {
				file = p.parseWorkingFile(line)
				st = expectSymbols
			} else {
				// Working file comes just after RCS file; reset if absent.
				st = expectFile
			}

		case expectSymbols:
			if strings.HasPrefix(line, "symbolic names:") {
				st = insideSymbols
			}

		case insideSymbols:
			if len(line) > 0 && !isSpace(line[0]) {
				file.HaveBranches = true
				st = expectStartLog
			} else {
				p.parseSym(file, line)
			}

		case expectStartLog:
			if line == logBoundary {
				st = expectRevision
			}

		case expectRevision:
			if strings.HasPrefix(line, "revision ") {
				revStr := chopRevisionExtra(strings.TrimSuffix(line[len("revision "):], "\n"))
				prevRev = rev
				rev = file.Revision(revStr)
				if file.HaveBranches {
					rev.Present = true
					warn, err := p.Graph.FinalizeRevisionBranch(file, rev, p.AllowUnnamedBranches)
					if err != nil {
						return fmt.Errorf("fatal: %w", err)
					}
					if warn != "" {
						p.Logger.Warnf("%s", warn)
					}
				}
				if w := rcsgraph.AssignPreRevision(prevRev, rev); w != "" {
					p.Logger.Warnf("%s", w)
				}
				st = expectDateAuthorState
			}

		case expectDateAuthorState:
			if strings.HasPrefix(line, "date:") {
				date, author, rev.Dead = parseDateAuthorState(line)
				rev.Date = date
				st = expectEndOfMessage
			}

		case expectEndOfMessage:
			if line == logBoundary || line == fileBoundary {
				if rev != nil {
					if rev.Dead && leafOf(rev.Rev) == 1 {
						body := logBody.String()
						if !strings.HasPrefix(body, "file ") || !strings.Contains(body, " was added on branch ") {
							return fmt.Errorf("%s: initial dead revision %s doesn't look like a branch add", file.Path, rev.Rev)
						}
						rev.BranchAdd = true
					}
					visit(Record{File: file, Rev: rev, Date: date, Author: author, Log: logBody.String()})
				}

				logBody.Reset()
				haveLog = false
				st = expectRevision

				if line == fileBoundary {
					if rev != nil {
						rcsgraph.AssignPreRevision(rev, nil)
					}
					rev = nil
					file = nil
					st = expectFile
				}
			} else if !haveLog && isRevisionMetadata(line) {
				if strings.HasPrefix(line, "branches:  ") {
					p.parseBranches(file, rev, line)
				}
			} else {
				logBody.WriteString(line)
				haveLog = true
			}
		}

		if rerr == io.EOF {
			break
		}
	}

	if st == expectSymbols {
		return fmt.Errorf("'symbolic names' not found in log output; perhaps retry with --norc")
	}
	if st != expectFile {
		return fmt.Errorf("log ended in unexpected state %s", st)
	}
	return nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// chopRevisionExtra strips anything after the dotted revision itself;
// the "revision" log line can trail with lock information.
func chopRevisionExtra(s string) string {
	i := 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	return s[:i]
}

func leafOf(rev string) int {
	_, leaf, ok := revstring.GetBranchExt(rev)
	if !ok {
		return 0
	}
	return leaf
}

// isRevisionMetadata reports whether buff looks like "<identifier>: <value>;"
// unknown metadata (spec.md §4.1), grounded on is_revision_metadata.
func isRevisionMetadata(buff string) bool {
	colon := strings.IndexByte(buff, ':')
	if colon < 0 {
		return false
	}
	if space := strings.IndexByte(buff, ' '); space >= 0 && space < colon {
		return false
	}
	trimmed := strings.TrimSuffix(buff, "\n")
	return strings.HasSuffix(trimmed, ";")
}

// parseDateAuthorState parses a "date: YYYY/MM/DD HH:MM:SS;  author: a;  state: s;" line.
func parseDateAuthorState(line string) (date time.Time, author string, dead bool) {
	rest := strings.TrimPrefix(line, "date:")
	rest = strings.TrimPrefix(rest, " ")
	author = "unknown"

	fields := strings.SplitN(rest, ";", 2)
	dateStr := strings.TrimSpace(fields[0])
	date, _ = time.Parse("2006/01/02 15:04:05", dateStr)

	if i := strings.Index(line, "author: "); i >= 0 {
		p := line[i+len("author: "):]
		if j := strings.IndexByte(p, ';'); j >= 0 {
			author = p[:j]
		}
	}
	if i := strings.Index(line, "state: "); i >= 0 {
		p := line[i+len("state: "):]
		if j := strings.IndexByte(p, ';'); j >= 0 {
			dead = strings.HasPrefix(p[:j], "dead")
		}
	}
	return date, author, dead
}

package emit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cvspsgo/cvsps/internal/diffrun"
	"github.com/cvspsgo/cvsps/internal/patchset"
	"github.com/sirupsen/logrus"
)

// Emitter drives the final pass of the pipeline: filtering the ordered
// patch-set list, printing matched summaries, requesting diffs, and
// optionally redirecting per-patch-set output to `-p <dir>` (spec.md
// §4.7, §6).
type Emitter struct {
	Out    io.Writer
	Logger *logrus.Logger

	Filters    *Filters
	Tags       TagIndex
	DateLayout string

	// Diff enables `-g`: a diff is requested per member from Runner.
	Diff   bool
	Runner *diffrun.Runner

	// SummaryFirst implements `--summary-first`: the emitter runs
	// twice, printing summaries on the first pass and diffs on the
	// second.
	SummaryFirst bool

	// PatchDir is `-p <dir>`; non-empty redirects each matched patch
	// set's combined summary+diff text to "<dir>/<psid>.patch" instead
	// of Out, grounded on check_print_patch_set's fd-redirect block.
	PatchDir string
}

// Matched filters all, returning only the patch sets that survive
// Filters.Allowed, in order.
func (e *Emitter) Matched(all []*patchset.PatchSet) []*patchset.PatchSet {
	var out []*patchset.PatchSet
	for _, ps := range all {
		if e.Filters.Allowed(ps) {
			out = append(out, ps)
		}
	}
	return out
}

// Run emits every patch set in all that passes the filter chain,
// following spec.md §4.7's summary/diff pass structure.
func (e *Emitter) Run(ctx context.Context, all []*patchset.PatchSet) error {
	matched := e.Matched(all)

	if e.PatchDir != "" {
		for _, ps := range matched {
			if err := e.writeToPatchDir(ctx, ps); err != nil {
				return err
			}
		}
		return nil
	}

	if e.SummaryFirst {
		for _, ps := range matched {
			WriteSummary(e.Out, ps, e.Tags, e.DateLayout)
		}
		if e.Diff {
			for _, ps := range matched {
				if err := e.writeDiffs(ctx, e.Out, ps); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, ps := range matched {
		WriteSummary(e.Out, ps, e.Tags, e.DateLayout)
		if e.Diff {
			if err := e.writeDiffs(ctx, e.Out, ps); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeToPatchDir implements SPEC_FULL.md §D.1: one "<psid>.patch" file
// per matched patch set, holding the same summary block followed by its
// diff output.
func (e *Emitter) writeToPatchDir(ctx context.Context, ps *patchset.PatchSet) error {
	path := filepath.Join(e.PatchDir, fmt.Sprintf("%d.patch", ps.ID))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("emit: can't open patch file %s: %w", path, err)
	}
	defer f.Close()

	if e.Logger != nil {
		e.Logger.Infof("directing PatchSet %d to file %s", ps.ID, path)
	}

	WriteSummary(f, ps, e.Tags, e.DateLayout)
	if e.Diff {
		return e.writeDiffs(ctx, f, ps)
	}
	return nil
}

// writeDiffs requests and writes one diff per member of ps, grounded on
// do_cvs_diff's per-Revision loop.
func (e *Emitter) writeDiffs(ctx context.Context, w io.Writer, ps *patchset.PatchSet) error {
	for _, m := range ps.MemberList() {
		req := diffrun.Request{File: m.File.Path, Rev: m.Rev, Dead: m.Dead}
		if m.PrevRev != nil {
			req.PrevRev = m.PrevRev.Rev
			req.PrevDead = m.PrevRev.Dead
		}
		out, err := e.Runner.Diff(ctx, req)
		if err != nil {
			return fmt.Errorf("emit: PatchSet %d: %w", ps.ID, err)
		}
		io.WriteString(w, out)
	}
	return nil
}

// Package diffrun is the external diff collaborator spec.md §1 treats
// as an out-of-core dependency ("the diff renderer ... invoked per
// patch set with the prior and current revision identifiers"): it
// shells out to the cvs client (`diff`/`update` or `rdiff`/`co`) and
// returns the rendered text.
//
// Grounded on original_source/cvsps.c's do_cvs_diff: two command
// shapes depending on whether --diff-opts was supplied, and the
// special-cased exit status handling for "cvs diff" returning 1 to
// mean "files differ" (spec.md §7).
package diffrun

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// Request describes one member's diff, mirroring do_cvs_diff's
// per-Revision loop body.
type Request struct {
	File     string // repository-relative path
	PrevRev  string // "" when there is no prior revision (INITIAL)
	Rev      string
	PrevDead bool
	Dead     bool
}

// initialOrDead reports whether this request needs the co/update
// fallback because cvs can't diff directly against a nonexistent or
// dead revision (do_cvs_diff: "!psm->prev_rev || psm->prev_rev->dead || psm->dead").
func (r Request) initialOrDead() bool {
	return r.PrevRev == "" || r.PrevDead || r.Dead
}

// Runner invokes the external diff command for one patch set's
// members. Not safe for concurrent use beyond what os/exec itself
// allows, matching spec.md §5's single-threaded model.
type Runner struct {
	Logger *logrus.Logger

	// RepositoryPath is the CVSROOT-relative module path prefixed onto
	// each file for "cvs diff"/"cvs rdiff" invocations.
	RepositoryPath string

	// Norc mirrors the `-f`/norc argument the original always passes
	// through to the cvs client once --norc has disabled rc processing.
	Norc bool

	// DiffOpts is the raw `--diff-opts` string (spec.md §6); tokenized
	// with shlex the way the teacher's indirect shlex dependency is
	// used elsewhere for option-string splitting.
	DiffOpts string

	// Command overrides the "cvs" binary name, for testing.
	Command string
}

// NewRunner returns a Runner with the "cvs" command default.
func NewRunner(logger *logrus.Logger, repositoryPath string) *Runner {
	return &Runner{Logger: logger, RepositoryPath: repositoryPath, Command: "cvs"}
}

func (r *Runner) command() string {
	if r.Command != "" {
		return r.Command
	}
	return "cvs"
}

func (r *Runner) norcArg() string {
	if r.Norc {
		return "-f"
	}
	return ""
}

// Diff renders req's diff by invoking the external cvs client,
// returning its combined stdout/stderr. A "cvs diff" exit code of 1
// ("files differ") is not an error (spec.md §7); any other nonzero
// exit is.
func (r *Runner) Diff(ctx context.Context, req Request) (string, error) {
	args, checkRet, err := r.buildArgs(req)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, r.command(), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err = cmd.Run()
	if err == nil {
		return out.String(), nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return out.String(), fmt.Errorf("diffrun: %s %v: %w", r.command(), args, err)
	}
	if exitErr.ExitCode() > checkRet {
		return out.String(), fmt.Errorf("diffrun: %s %v exited %d: %w", r.command(), args, exitErr.ExitCode(), err)
	}
	return out.String(), nil
}

// buildArgs implements do_cvs_diff's two command shapes: a plain
// `diff`/`update -p` pair when --diff-opts was supplied (dtype=diff,
// utype=update), else `rdiff`/`co` (dtype=rdiff, utype=co). checkRet
// is 1 only for the "diff" form, matching "cvs diff returns 1 ... so
// use a better method to check for failure".
func (r *Runner) buildArgs(req Request) (args []string, checkRet int, err error) {
	opts := []string{"-u"}
	dtype := "rdiff"
	if r.DiffOpts != "" {
		opts, err = shlex.Split(r.DiffOpts)
		if err != nil {
			return nil, 0, fmt.Errorf("diffrun: invalid --diff-opts %q: %w", r.DiffOpts, err)
		}
		dtype = "diff"
	}

	path := req.File
	if r.RepositoryPath != "" {
		path = r.RepositoryPath + "/" + req.File
	}

	if req.initialOrDead() {
		rev := req.Rev
		if req.PrevRev != "" && !req.PrevDead {
			rev = req.PrevRev
		}
		utype := "co"
		if dtype == "diff" {
			utype = "update"
		}
		args = append(args, nonEmpty(r.norcArg())...)
		args = append(args, utype, "-p", "-r", rev, path)
		return args, 0, nil
	}

	args = append(args, nonEmpty(r.norcArg())...)
	args = append(args, dtype)
	args = append(args, opts...)
	args = append(args, "-r", req.PrevRev, "-r", req.Rev, path)
	if dtype == "diff" {
		checkRet = 1
	}
	return args, checkRet, nil
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

// Package pipeline wires logsource -> logparse -> rcsgraph -> patchset
// -> resolve -> order into the single end-to-end run spec.md's data-flow
// diagram describes (§2 "Data flows"). It owns the Context value §9
// calls for ("global mutable state... collected into an explicit
// Context value passed through phases; lifetime = one invocation"),
// grounded on the teacher main()'s top-to-bottom wiring of
// NewGitP4Transfer -> GitParse -> journal writer loop.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/cvspsgo/cvsps/internal/config"
	"github.com/cvspsgo/cvsps/internal/logparse"
	"github.com/cvspsgo/cvsps/internal/logsource"
	"github.com/cvspsgo/cvsps/internal/order"
	"github.com/cvspsgo/cvsps/internal/patchset"
	"github.com/cvspsgo/cvsps/internal/rcsgraph"
	"github.com/cvspsgo/cvsps/internal/resolve"
	"github.com/sirupsen/logrus"
)

// Result is everything downstream consumers (internal/emit, cmd/cvsps)
// need after one run: the built graph, every patch set built, the
// final emit-ordered list, the diagnostic collisions list (SPEC_FULL.md
// §D.4), and the `-r` tag resolution used to drive internal/emit's
// filter chain.
type Result struct {
	Graph      *rcsgraph.Graph
	All        []*patchset.PatchSet
	Order      []*patchset.PatchSet
	Collisions []*patchset.PatchSet
	Resolve    resolve.Result
}

// SourceFor selects the logsource.Source spec.md §6's flags describe:
// --test-log wins outright (a captured log always takes precedence,
// grounded on load_from_cvs's "if (test_log_file)" check), then
// --cvs-direct, else the cvs log/rlog subprocess runner.
func SourceFor(opts config.Options, logger *logrus.Logger) logsource.Source {
	if opts.TestLogFile != "" {
		return logsource.FileSource{Path: opts.TestLogFile}
	}
	if opts.CvsDirect && !opts.NoCvsDirect {
		return logsource.DirectSource{Root: opts.Root, RepositoryPath: opts.Repository}
	}
	return logsource.CommandSource{
		Logger:         logger,
		Root:           opts.Root,
		Norc:           opts.NoRC,
		Compress:       opts.Compress,
		RepositoryPath: opts.Repository,
		NoRlog:         opts.NoRlog,
		UseRlog:        !opts.NoRlog,
	}
}

// deriveStripPath reconstructs the "%s/%s/" prefix parse_rcs_file
// trims from every "RCS file:" line (spec.md §4.1 "Normalization of
// RCS file paths"), from the resolved CVSROOT and repository path.
// Either half may be empty (e.g. --test-log runs with no --root); an
// empty result just means internal/logparse's reconcileStripPath
// fallback does all the work on the first file line.
func deriveStripPath(opts config.Options) string {
	switch {
	case opts.Root != "" && opts.Repository != "":
		return strings.TrimSuffix(opts.Root, "/") + "/" + strings.TrimSuffix(opts.Repository, "/") + "/"
	case opts.Repository != "":
		return strings.TrimSuffix(opts.Repository, "/") + "/"
	default:
		return ""
	}
}

// Run executes the full reconstruction for one log stream produced by
// source: parse -> graph build -> patch-set aggregation -> vendor
// shadow synthesis -> psid assignment -> symbol resolution -> final
// total order (spec.md §2's component table, in dependency order).
func Run(ctx context.Context, opts config.Options, logger *logrus.Logger, source logsource.Source) (*Result, error) {
	rc, err := source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	defer rc.Close()

	graph := rcsgraph.NewGraph()
	parser := logparse.NewParser(graph, logger, deriveStripPath(opts), opts.Repository)
	parser.AllowUnnamedBranches = opts.Unnamed

	agg := patchset.NewAggregator(logger, opts.Fuzz)

	if err := parser.Parse(rc, agg.Visit); err != nil {
		return nil, fmt.Errorf("pipeline: parse: %w", err)
	}

	// The unnamed-branch naming pass (spec.md §3 Symbol lifecycle) must
	// run before vendor-shadow synthesis and psid assignment so every
	// Symbol a PatchSet's Branch can point at already carries its final
	// name (SPEC_FULL.md §D.6).
	graph.NameUnnamedBranches()

	agg.SynthesizeVendorShadows(graph)

	// psids must be assigned before symbol resolution: resolve_symbols
	// picks "the highest-psid PatchSet" (spec.md §4.5), which is only
	// meaningful once every patch set has its final id.
	order.AssignPSIDs(agg.All())

	resolveResult := resolve.Resolve(graph, opts.Strict, opts.TagStart, opts.TagEnd, logger)

	order.BuildBranchLists(agg.All())

	var trunk []*patchset.PatchSet
	for _, ps := range agg.All() {
		if ps.Branch == nil {
			trunk = append(trunk, ps)
		}
	}
	final := order.FinalOrder(trunk, graph.Symbols, func(msg string) {
		logger.Warnf("%s", msg)
	})

	return &Result{
		Graph:      graph,
		All:        agg.All(),
		Order:      final,
		Collisions: agg.Collisions(),
		Resolve:    resolveResult,
	}, nil
}

// Command cvsps reconstructs atomic, project-wide patch sets from a
// CVS/RCS per-file revision log, groups them onto named branches,
// resolves symbolic tags against the result, and prints a chronological,
// filterable listing (spec.md §1, §6).
//
// Design: main() parses CLI flags with kingpin, merges an optional rc
// file ("one option per line, first token is the flag") underneath
// them, and hands the merged internal/config.Options to
// internal/pipeline.Run; the result is filtered and printed by
// internal/emit. Grounded on the teacher's main(): one kingpin flag
// block, a *logrus.Logger created once and threaded through every
// stage, os.Exit(1) on fatal errors (SPEC_FULL.md §A, §B).
package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/cvspsgo/cvsps/internal/config"
	"github.com/cvspsgo/cvsps/internal/diffrun"
	"github.com/cvspsgo/cvsps/internal/emit"
	"github.com/cvspsgo/cvsps/internal/pipeline"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

// version is overridable via -ldflags "-X main.version=...", replacing
// the teacher's p4prometheus/version helper (SPEC_FULL.md §C: that
// package is Perforce-specific and has no home here).
var version = "dev"

func main() {
	var (
		fuzz = kingpin.Flag(
			"fuzz",
			"Time fuzz factor (seconds) for patch set grouping.",
		).Short('z').Default("300").Int()
		diffFlag = kingpin.Flag(
			"diff",
			"Request a diff per member of each matched patch set.",
		).Short('g').Bool()
		rangesFlag = kingpin.Flag(
			"range",
			"Patch set id range(s) to print, e.g. 10-20,30.",
		).Short('s').String()
		author = kingpin.Flag(
			"author",
			"Only show patch sets with this author.",
		).Short('a').String()
		fileRe = kingpin.Flag(
			"file-regex",
			"Only show patch sets touching a file matching this regex.",
		).Short('f').String()
		dates = kingpin.Flag(
			"date",
			"Lower (and, given twice, upper) date bound.",
		).Short('d').Strings()
		branch = kingpin.Flag(
			"branch",
			"Only show patch sets on this branch.",
		).Short('b').String()
		logRe = kingpin.Flag(
			"log-regex",
			"Only show patch sets whose log message matches this regex.",
		).Short('l').String()
		tagFlags = kingpin.Flag(
			"tag",
			"Restrict to patch sets from this tag (given twice: start/end).",
		).Short('r').Strings()
		patchDir = kingpin.Flag(
			"patch-dir",
			"Write each matched patch set to <dir>/<psid>.patch instead of stdout.",
		).Short('p').String()
		verbose = kingpin.Flag(
			"verbose",
			"Enable verbose (debug-level) logging.",
		).Short('v').Bool()
		testMode = kingpin.Flag(
			"test",
			"Parse and build the graph but print nothing.",
		).Short('t').Bool()
		noRC = kingpin.Flag(
			"norc",
			"Don't load the cvspsrc rc file.",
		).Bool()
		summaryFirst = kingpin.Flag(
			"summary-first",
			"Print all matched summaries, then all diffs.",
		).Bool()
		testLogFile = kingpin.Flag(
			"test-log",
			"Read a captured log file instead of invoking cvs.",
		).String()
		noRlog = kingpin.Flag(
			"no-rlog",
			"Never use 'cvs rlog', always 'cvs log'.",
		).Bool()
		diffOpts = kingpin.Flag(
			"diff-opts",
			"Extra options passed to 'cvs diff'.",
		).String()
		cvsDirect = kingpin.Flag(
			"cvs-direct",
			"Use the direct CVS protocol client instead of the cvs binary.",
		).Bool()
		noCvsDirect = kingpin.Flag(
			"no-cvs-direct",
			"Disable --cvs-direct even if set by the rc file.",
		).Bool()
		debugLvl = kingpin.Flag(
			"debuglvl",
			"Debug bitmask.",
		).Int()
		compress = kingpin.Flag(
			"compress",
			"Compression level (0-9) for the cvs pipe.",
		).Short('Z').Default("0").Int()
		root = kingpin.Flag(
			"root",
			"CVSROOT to use.",
		).String()
		quiet = kingpin.Flag(
			"quiet",
			"Suppress informational messages.",
		).Short('q').Bool()
		strict = kingpin.Flag(
			"strict",
			"Strict tag validity checking (distinguish FUNKY from INVALID).",
		).Short('F').Bool()
		unnamed = kingpin.Flag(
			"unnamed",
			"Tolerate/synthesize unnamed branches instead of failing.",
		).Short('U').Bool()
		dateFmt = kingpin.Flag(
			"date-format",
			"Go time layout (e.g. 2006/01/02 15:04:05) for -d and output; strftime % directives are not interpreted.",
		).Short('D').String()
		repository = kingpin.Arg(
			"repository",
			"Repository path, relative to CVSROOT.",
		).String()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version).Author("cvspsgo")
	kingpin.CommandLine.Help = "Reconstruct atomic patch sets from a CVS/RCS per-file revision log.\n"
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *quiet {
		logger.Level = logrus.ErrorLevel
	}
	if *verbose || *debugLvl > 0 {
		logger.Level = logrus.DebugLevel
	}

	opts := config.Default()
	opts.Repository = *repository
	opts.NoRC = *noRC

	if !opts.NoRC {
		if err := loadRC(&opts, logger); err != nil {
			logger.Warnf("rc file: %v", err)
		}
	}

	// CLI flags override the rc file, mirroring the teacher's
	// "if *flag != default { cfg.Field = *flag }" pattern in main().
	if *fuzz != 300 {
		opts.Fuzz = time.Duration(*fuzz) * time.Second
	}
	if *diffFlag {
		opts.Diff = true
	}
	if *rangesFlag != "" {
		ranges, err := config.ParseRange(*rangesFlag)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		opts.Ranges = ranges
	}
	if *author != "" {
		opts.Author = *author
	}
	if *fileRe != "" {
		opts.FileRe = *fileRe
	}
	for _, d := range *dates {
		if err := opts.ApplyDateFlag(d); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	}
	if *branch != "" {
		opts.Branch = *branch
	}
	if *logRe != "" {
		opts.LogRe = *logRe
	}
	for _, tag := range *tagFlags {
		opts.ApplyTagFlag(tag)
	}
	if *patchDir != "" {
		opts.PatchDir = *patchDir
	}
	if *verbose {
		opts.Verbose = true
	}
	if *testMode {
		opts.Test = true
	}
	if *summaryFirst {
		opts.SummaryFirst = true
	}
	if *testLogFile != "" {
		opts.TestLogFile = *testLogFile
	}
	if *noRlog {
		opts.NoRlog = true
	}
	if *diffOpts != "" {
		opts.DiffOpts = *diffOpts
	}
	if *cvsDirect {
		opts.CvsDirect = true
	}
	if *noCvsDirect {
		opts.NoCvsDirect = true
	}
	if *debugLvl != 0 {
		opts.DebugLvl = *debugLvl
	}
	if *compress != 0 {
		opts.Compress = *compress
	}
	if *root != "" {
		opts.Root = *root
	}
	if *quiet {
		opts.Quiet = true
	}
	if *strict {
		opts.Strict = true
	}
	if *unnamed {
		opts.Unnamed = true
	}
	if *dateFmt != "" {
		opts.DateFmt = *dateFmt
	}

	source := pipeline.SourceFor(opts, logger)
	res, err := pipeline.Run(context.Background(), opts, logger, source)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	if len(res.Collisions) > 0 {
		ids := make([]int, len(res.Collisions))
		for i, ps := range res.Collisions {
			ids[i] = ps.ID
		}
		logger.Warnf("%d patch set(s) had colliding members: %v", len(res.Collisions), ids)
	}

	if opts.Test {
		return
	}

	filters, err := emit.NewFilters(opts, res.Resolve.TagStartPSID, res.Resolve.TagEndPSID)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if opts.Branch != "" && res.Resolve.ImplicitBranch != "" && res.Resolve.ImplicitBranch != opts.Branch {
		logger.Warnf("-r tag end resolves to branch %s, but -b %s was given; keeping -b", res.Resolve.ImplicitBranch, opts.Branch)
	}
	if opts.Branch == "" && res.Resolve.ImplicitBranch != "" {
		filters.Branch = res.Resolve.ImplicitBranch
	}

	e := &emit.Emitter{
		Out:          os.Stdout,
		Logger:       logger,
		Filters:      filters,
		Tags:         emit.BuildTagIndex(res.Graph.Symbols),
		DateLayout:   opts.DateFmt,
		Diff:         opts.Diff,
		SummaryFirst: opts.SummaryFirst,
		PatchDir:     opts.PatchDir,
	}
	if opts.Diff {
		e.Runner = diffrun.NewRunner(logger, opts.Repository)
		e.Runner.Norc = opts.NoRC
		e.Runner.DiffOpts = opts.DiffOpts
	}

	if err := e.Run(context.Background(), res.Order); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

// loadRC loads "<configDir>/cvspsrc" (spec.md §6 "RC file"), applying
// each line's flag/arg pair the same way a CLI flag would be applied,
// grounded on the teacher's LoadConfigFile-then-override shape
// (SPEC_FULL.md §B). $HOME is used as configDir, mirroring the
// original's getpwuid-based home directory lookup.
func loadRC(opts *config.Options, logger *logrus.Logger) error {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		if u, uerr := user.Current(); uerr == nil {
			home = u.HomeDir
		}
	}
	if home == "" {
		return nil
	}
	return config.LoadRCFile(config.RCFilePath(home), func(flag, arg string) error {
		return applyRCFlag(opts, flag, arg, logger)
	})
}

// applyRCFlag maps one rc-file line onto Options, reusing the same
// flag vocabulary as the CLI (spec.md §6). "--norc" inside the rc file
// itself is meaningless (the file is already being read) and is
// ignored rather than rejected.
func applyRCFlag(opts *config.Options, flag, arg string, logger *logrus.Logger) error {
	switch trimDashes(flag) {
	case "z":
		secs, err := time.ParseDuration(arg + "s")
		if err != nil {
			return fmt.Errorf("cvspsrc: invalid -z %q: %w", arg, err)
		}
		opts.Fuzz = secs
	case "g":
		opts.Diff = true
	case "s":
		ranges, err := config.ParseRange(arg)
		if err != nil {
			return err
		}
		opts.Ranges = ranges
	case "a":
		opts.Author = arg
	case "f":
		opts.FileRe = arg
	case "d":
		return opts.ApplyDateFlag(arg)
	case "b":
		opts.Branch = arg
	case "l":
		opts.LogRe = arg
	case "r":
		opts.ApplyTagFlag(arg)
	case "p":
		opts.PatchDir = arg
	case "v":
		opts.Verbose = true
	case "t":
		opts.Test = true
	case "norc":
		// handled by the caller before the rc file is even opened.
	case "summary-first":
		opts.SummaryFirst = true
	case "test-log":
		opts.TestLogFile = arg
	case "no-rlog":
		opts.NoRlog = true
	case "diff-opts":
		opts.DiffOpts = arg
	case "cvs-direct":
		opts.CvsDirect = true
	case "no-cvs-direct":
		opts.NoCvsDirect = true
	case "root":
		opts.Root = arg
	case "q":
		opts.Quiet = true
	case "F":
		opts.Strict = true
	case "U":
		opts.Unnamed = true
	case "D":
		opts.DateFmt = arg
	default:
		logger.Debugf("cvspsrc: ignoring unknown option %q", flag)
	}
	return nil
}

func trimDashes(flag string) string {
	for len(flag) > 0 && flag[0] == '-' {
		flag = flag[1:]
	}
	return flag
}

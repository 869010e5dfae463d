// Package config holds the Options struct that carries every CLI flag
// from spec.md §6, the rc-file loader ("first token is the flag, rest
// is the argument"), and the small parsing helpers (`-s` ranges, `-d`
// date bounds, the `#CVSPS_EPOCH` pseudo-tag) those flags need.
//
// Grounded on the teacher's config.LoadConfigFile/LoadConfigString/
// Unmarshal/validate four-function shape, adapted to this system's
// line-oriented rc format instead of YAML (SPEC_FULL.md §B, §C).
package config

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultFuzz is the `-z` default (spec.md §4.3 "Default tuning: fuzz
// factor 300 seconds").
const DefaultFuzz = 300 * time.Second

// EpochTag is the pseudo-tag `-r` accepts meaning "before any patch
// set" (spec.md §6).
const EpochTag = "#CVSPS_EPOCH"

// DateLayout is the strftime-equivalent layout `-D` overrides
// (spec.md §6); the default matches the log producer's own
// "YYYY/MM/DD HH:MM:SS" timestamp rendering.
const DateLayout = "2006/01/02 15:04:05"

// PatchSetRange is a closed [Min,Max] psid interval used by `-s`
// (spec.md §3 PatchSetRange).
type PatchSetRange struct {
	Min int
	Max int
}

// Contains reports whether psid falls within the range, inclusive.
func (r PatchSetRange) Contains(psid int) bool {
	return r.Min <= psid && psid <= r.Max
}

// Options is the full set of run-time options spec.md §6 names,
// populated first from defaults, then an rc file, then CLI flags
// (SPEC_FULL.md §B "Configuration").
type Options struct {
	Fuzz     time.Duration
	Diff     bool
	Ranges   []PatchSetRange
	Author   string
	FileRe   string
	DateLo   time.Time
	DateHi   time.Time
	Branch   string
	LogRe    string
	TagStart string
	TagEnd   string
	PatchDir string
	Verbose  bool
	Test     bool
	NoRC     bool

	SummaryFirst bool
	TestLogFile  string
	NoRlog       bool
	DiffOpts     string
	CvsDirect    bool
	NoCvsDirect  bool
	DebugLvl     int
	Compress     int
	Root         string
	Quiet        bool
	Strict       bool // -F
	Unnamed      bool // -U
	DateFmt      string

	Repository string
}

// Default returns an Options populated with spec.md §6's defaults.
func Default() Options {
	return Options{
		Fuzz:     DefaultFuzz,
		DateFmt:  DateLayout,
		Compress: 0,
	}
}

// ParseRange parses one or more comma-separated `-s` ranges of the
// form "min-max" or "n" (meaning min==max) or "min-" (meaning
// max==unbounded), grounded on the original's strtok(",")/strrchr('-')
// parse.
func ParseRange(s string) ([]PatchSetRange, error) {
	var out []PatchSetRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		minStr, maxStr := part, part
		if i := strings.LastIndexByte(part, '-'); i >= 0 {
			minStr, maxStr = part[:i], part[i+1:]
		}
		min, err := strconv.Atoi(minStr)
		if err != nil {
			return nil, fmt.Errorf("invalid -s range %q: %w", part, err)
		}
		max := math.MaxInt32
		if maxStr != "" {
			max, err = strconv.Atoi(maxStr)
			if err != nil {
				return nil, fmt.Errorf("invalid -s range %q: %w", part, err)
			}
		}
		out = append(out, PatchSetRange{Min: min, Max: max})
	}
	return out, nil
}

// ParseDate parses one `-d` argument using DateLayout (or the
// configured `-D` override), falling back to RFC3339 so a caller
// invoking cvspsgo with an ISO timestamp isn't forced into CVS's
// native format.
func ParseDate(s, layout string) (time.Time, error) {
	if layout == "" {
		layout = DateLayout
	}
	if t, err := time.Parse(layout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ApplyDateFlag implements spec.md §6's "-d <date> (given once = lower
// bound, twice = range)": the first call sets DateLo, the second
// DateHi.
func (o *Options) ApplyDateFlag(s string) error {
	t, err := ParseDate(s, o.DateFmt)
	if err != nil {
		return fmt.Errorf("invalid -d date %q: %w", s, err)
	}
	if o.DateLo.IsZero() {
		o.DateLo = t
	} else {
		o.DateHi = t
	}
	return nil
}

// ApplyTagFlag implements spec.md §6's "-r <tag> (given once = start,
// twice = start/end)". When no explicit `-b` was given, cmd/cvsps
// later restricts output to the branch the end tag resolves to; an
// explicit `-b` is never overridden (spec.md §8 scenario 6).
func (o *Options) ApplyTagFlag(tag string) {
	if o.TagStart == "" {
		o.TagStart = tag
	} else {
		o.TagEnd = tag
	}
}

// LoadRCLines parses rc-file content: one option per line, first
// whitespace-separated token is the flag (with or without its leading
// dashes), the remainder of the line is its argument. Blank lines and
// lines starting with '#' are ignored. `--norc` anywhere in the file
// disables nothing here -- the caller is
// responsible for skipping the rc file entirely when --norc was seen
// on the command line, per spec.md §6's "RC file" note.
func LoadRCLines(r *bufio.Scanner, apply func(flag, arg string) error) error {
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		flag, arg := line, ""
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			flag, arg = line[:i], strings.TrimSpace(line[i+1:])
		}
		if err := apply(flag, arg); err != nil {
			return err
		}
	}
	return r.Err()
}

// LoadRCFile opens path and feeds its lines to apply, grounded on
// LoadConfigFile's read-then-delegate shape. A missing rc file is not
// an error (spec.md doesn't require one to exist).
func LoadRCFile(path string, apply func(flag, arg string) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load %v: %w", path, err)
	}
	defer f.Close()
	return LoadRCLines(bufio.NewScanner(f), apply)
}

// RCFilePath returns "<configDir>/cvspsrc" (spec.md §6 "RC file").
func RCFilePath(configDir string) string {
	return configDir + "/cvspsrc"
}

package emit

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/cvspsgo/cvsps/internal/config"
	"github.com/cvspsgo/cvsps/internal/diffrun"
	"github.com/cvspsgo/cvsps/internal/intern"
	"github.com/cvspsgo/cvsps/internal/patchset"
	"github.com/cvspsgo/cvsps/internal/rcsgraph"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.Level = logrus.ErrorLevel
	return l
}

func TestEmitterRunFiltersAndWritesToStdout(t *testing.T) {
	f, err := NewFilters(config.Default(), 0, 0)
	assert.NoError(t, err)

	var buf strings.Builder
	e := &Emitter{Out: &buf, Logger: testLogger(), Filters: f, Tags: BuildTagIndex(nil)}

	kept := ps(1)
	dropped := ps(2)
	dropped.BranchAdd = true

	assert.NoError(t, e.Run(context.Background(), []*patchset.PatchSet{kept, dropped}))
	out := buf.String()
	assert.Contains(t, out, "PatchSet 1\n")
	assert.NotContains(t, out, "PatchSet 2\n")
}

func TestEmitterRunWritesPatchDir(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFilters(config.Default(), 0, 0)
	assert.NoError(t, err)

	e := &Emitter{Logger: testLogger(), Filters: f, Tags: BuildTagIndex(nil), PatchDir: dir}
	assert.NoError(t, e.Run(context.Background(), []*patchset.PatchSet{ps(4)}))

	data, err := os.ReadFile(filepath.Join(dir, "4.patch"))
	assert.NoError(t, err)
	assert.Contains(t, string(data), "PatchSet 4\n")
}

func TestEmitterRunRequestsDiffs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake shell script fixture is POSIX-only")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fakecvs")
	assert.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"diff output for $@\"\n"), 0o755))

	f, err := NewFilters(config.Default(), 0, 0)
	assert.NoError(t, err)

	p := ps(1)
	file := &struct{}{} // placeholder to keep import list honest
	_ = file

	runner := diffrun.NewRunner(testLogger(), "mod")
	runner.Command = script

	var buf strings.Builder
	e := &Emitter{Out: &buf, Logger: testLogger(), Filters: f, Tags: BuildTagIndex(nil), Diff: true, Runner: runner}

	fl := newFileForDiffTest()
	r11 := fl.Revision("1.1")
	p.Members = intern.NewOrderedSet()
	p.Members.Add(r11)

	assert.NoError(t, e.Run(context.Background(), []*patchset.PatchSet{p}))
	assert.Contains(t, buf.String(), "diff output for")
}

func newFileForDiffTest() *fileStub {
	return rcsgraph.NewFile("a.c", nil)
}

// fileStub aliases rcsgraph.File so the diff test exercises a real
// File and its Revision constructor.
type fileStub = rcsgraph.File

var _ = time.Now

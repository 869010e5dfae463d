package diffrun

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.Level = logrus.ErrorLevel
	return l
}

// fakeCommand writes a tiny shell script under t.TempDir() that exits
// with the given code, printing its arguments to stdout first.
func fakeCommand(t *testing.T, exitCode int) string {
	if runtime.GOOS == "windows" {
		t.Skip("fake shell script fixture is POSIX-only")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fakecvs")
	script := fmt.Sprintf("#!/bin/sh\necho \"$@\"\nexit %d\n", exitCode)
	assert.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestDiffOptsFormSelectsRegularDiff(t *testing.T) {
	r := NewRunner(testLogger(), "mod")
	r.DiffOpts = "-u -p"
	r.Command = fakeCommand(t, 1) // "cvs diff" exit 1 == files differ

	out, err := r.Diff(context.Background(), Request{File: "a.c", PrevRev: "1.1", Rev: "1.2"})
	assert.NoError(t, err)
	assert.Contains(t, out, "diff -u -p -r 1.1 -r 1.2 mod/a.c")
}

func TestNonDiffExitIsFatal(t *testing.T) {
	r := NewRunner(testLogger(), "mod")
	r.Command = fakeCommand(t, 2)

	_, err := r.Diff(context.Background(), Request{File: "a.c", PrevRev: "1.1", Rev: "1.2"})
	assert.Error(t, err)
}

func TestInitialRevisionUsesCheckout(t *testing.T) {
	r := NewRunner(testLogger(), "mod")
	r.Command = fakeCommand(t, 0)

	out, err := r.Diff(context.Background(), Request{File: "a.c", Rev: "1.1"})
	assert.NoError(t, err)
	assert.Contains(t, out, "co -p -r 1.1 mod/a.c")
}

package main

import (
	"testing"
	"time"

	"github.com/cvspsgo/cvsps/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.Level = logrus.ErrorLevel
	return l
}

func TestTrimDashes(t *testing.T) {
	assert.Equal(t, "norc", trimDashes("--norc"))
	assert.Equal(t, "z", trimDashes("-z"))
	assert.Equal(t, "r", trimDashes("r"))
}

func TestApplyRCFlagFuzzAndRanges(t *testing.T) {
	opts := config.Default()
	assert.NoError(t, applyRCFlag(&opts, "-z", "600", testLogger()))
	assert.Equal(t, 600*time.Second, opts.Fuzz)

	assert.NoError(t, applyRCFlag(&opts, "-s", "10-20", testLogger()))
	if assert.Len(t, opts.Ranges, 1) {
		assert.Equal(t, config.PatchSetRange{Min: 10, Max: 20}, opts.Ranges[0])
	}
}

func TestApplyRCFlagTagStartThenEnd(t *testing.T) {
	opts := config.Default()
	assert.NoError(t, applyRCFlag(&opts, "-r", "REL_1", testLogger()))
	assert.Equal(t, "REL_1", opts.TagStart)
	assert.NoError(t, applyRCFlag(&opts, "-r", "REL_2", testLogger()))
	assert.Equal(t, "REL_2", opts.TagEnd)
}

func TestApplyRCFlagUnknownIsIgnored(t *testing.T) {
	opts := config.Default()
	assert.NoError(t, applyRCFlag(&opts, "--something-unrelated", "value", testLogger()))
}

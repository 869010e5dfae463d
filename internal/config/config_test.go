package config

import (
	"bufio"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRangeSingle(t *testing.T) {
	ranges, err := ParseRange("10-20")
	if assert.NoError(t, err) && assert.Len(t, ranges, 1) {
		assert.Equal(t, PatchSetRange{Min: 10, Max: 20}, ranges[0])
	}
}

func TestParseRangeMultipleAndUnbounded(t *testing.T) {
	ranges, err := ParseRange("5,10-")
	if assert.NoError(t, err) && assert.Len(t, ranges, 2) {
		assert.Equal(t, PatchSetRange{Min: 5, Max: 5}, ranges[0])
		assert.Equal(t, PatchSetRange{Min: 10, Max: math.MaxInt32}, ranges[1])
	}
}

func TestApplyDateFlagOnceThenTwice(t *testing.T) {
	o := Default()
	assert.NoError(t, o.ApplyDateFlag("2020/01/01 00:00:00"))
	assert.False(t, o.DateLo.IsZero())
	assert.True(t, o.DateHi.IsZero())

	assert.NoError(t, o.ApplyDateFlag("2020/06/01 00:00:00"))
	assert.False(t, o.DateHi.IsZero())
}

func TestApplyTagFlagOnceThenTwice(t *testing.T) {
	o := Default()
	o.ApplyTagFlag("REL_1")
	assert.Equal(t, "REL_1", o.TagStart)
	assert.Empty(t, o.TagEnd)

	o.ApplyTagFlag("REL_2")
	assert.Equal(t, "REL_2", o.TagEnd)
}

func TestLoadRCLines(t *testing.T) {
	content := "-z 600\n# a comment\n\n--norc\n"
	var got []string
	err := LoadRCLines(bufio.NewScanner(strings.NewReader(content)), func(flag, arg string) error {
		got = append(got, flag+"="+arg)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"-z=600", "--norc="}, got)
}

func TestLoadRCFileMissingIsNotAnError(t *testing.T) {
	err := LoadRCFile("/nonexistent/path/cvspsrc", func(flag, arg string) error { return nil })
	assert.NoError(t, err)
}

package logparse

import (
	"strings"
	"testing"

	"github.com/cvspsgo/cvsps/internal/rcsgraph"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.Level = logrus.ErrorLevel
	return l
}

// sampleLog is a minimal two-revision cvs log for a single file,
// shaped like `cvs log` output (spec.md §4.1).
const sampleLog = `RCS file: /cvsroot/mod/file.c,v
Working file: mod/file.c
head: 1.2
branch:
locks: strict
access list:
symbolic names:
	REL_A: 1.1.0.2
keyword substitution: kv
total revisions: 2;	selected revisions: 2
description:
----------------------------
revision 1.2
date: 2020/01/02 10:00:00;  author: jrandom;  state: Exp;  lines: +1 -1;
second commit
----------------------------
revision 1.1
date: 2020/01/01 10:00:00;  author: jrandom;  state: Exp;
initial revision
=============================================================================
`

func TestParseTwoRevisionsOneFile(t *testing.T) {
	g := rcsgraph.NewGraph()
	p := NewParser(g, testLogger(), "/cvsroot/", "mod")

	var recs []Record
	err := p.Parse(strings.NewReader(sampleLog), func(r Record) {
		recs = append(recs, r)
	})
	assert.NoError(t, err)
	if assert.Len(t, recs, 2) {
		assert.Equal(t, "1.2", recs[0].Rev.Rev)
		assert.Equal(t, "jrandom", recs[0].Author)
		assert.Contains(t, recs[0].Log, "second commit")
		assert.Equal(t, "1.1", recs[1].Rev.Rev)
	}

	f, ok := g.Files["mod/file.c"]
	if !assert.True(t, ok) {
		return
	}
	assert.True(t, f.HaveBranches)
	tag, ok := f.Symbols["REL_A"]
	if assert.True(t, ok) {
		assert.Equal(t, rcsgraph.TagBranch, tag.Kind)
	}

	r12 := f.Revisions["1.2"]
	r11 := f.Revisions["1.1"]
	assert.Equal(t, r11, r12.PrevRev)
}

// A mismatched "RCS file:" prefix that can't be reconciled falls back
// to the following "Working file:" line, which needs no strip_path
// (spec.md §4.1).
func TestWorkingFileFallback(t *testing.T) {
	log := `RCS file: /somewhere/else/mod/file.c,v
Working file: mod/file.c
symbolic names:
total revisions: 1;	selected revisions: 1
description:
----------------------------
revision 1.1
date: 2020/01/01 10:00:00;  author: jrandom;  state: Exp;
initial revision
=============================================================================
`
	g := rcsgraph.NewGraph()
	p := NewParser(g, testLogger(), "/cvsroot/", "")
	var recs []Record
	err := p.Parse(strings.NewReader(log), func(r Record) { recs = append(recs, r) })
	assert.NoError(t, err)
	assert.Len(t, recs, 1)
	_, ok := g.Files["mod/file.c"]
	assert.True(t, ok)
}

func TestMissingSymbolicNamesIsFatal(t *testing.T) {
	log := "RCS file: /cvsroot/mod/file.c,v\nWorking file: mod/file.c\n"
	g := rcsgraph.NewGraph()
	p := NewParser(g, testLogger(), "/cvsroot/", "mod")
	err := p.Parse(strings.NewReader(log), func(Record) {})
	assert.Error(t, err)
}

func TestAtticStripping(t *testing.T) {
	fn := stripAttic("mod/Attic/gone.c")
	assert.Equal(t, "mod/gone.c", fn)
	assert.Equal(t, "mod/keep.c", stripAttic("mod/keep.c"))
}

func TestIsRevisionMetadata(t *testing.T) {
	assert.True(t, isRevisionMetadata("total revisions: 2;\n"))
	assert.False(t, isRevisionMetadata("just some log text\n"))
}

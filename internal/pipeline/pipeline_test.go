package pipeline

import (
	"context"
	"io"
	"strings"
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

// readerSource wraps a fixed string as a logsource.Source, standing in
// for --test-log without touching the filesystem.
type readerSource struct{ text string }

func (s readerSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.text)), nil
}

// twoFileLog carries end-to-end scenario 1 from spec.md §8: two files,
// trunk only, two commits sharing author/log a few seconds apart.
const twoFileLog = `RCS file: /cvsroot/mod/a.c,v
Working file: mod/a.c
symbolic names:
total revisions: 1;	selected revisions: 1
description:
----------------------------
revision 1.1
date: 2020/01/01 10:00:00;  author: jrandom;  state: Exp;
shared commit
=============================================================================
RCS file: /cvsroot/mod/b.c,v
Working file: mod/b.c
symbolic names:
total revisions: 1;	selected revisions: 1
description:
----------------------------
revision 1.1
date: 2020/01/01 10:01:40;  author: jrandom;  state: Exp;
shared commit
=============================================================================
`

func TestRunGroupsTwoFilesIntoOnePatchSetWithDefaultFuzz(t *testing.T) {
	opts := config.Default()
	opts.Repository = "mod"
	res, err := Run(context.Background(), opts, testLogger(), readerSource{twoFileLog})
	if !assert.NoError(t, err) {
		return
	}
	if assert.Len(t, res.All, 1) {
		assert.Len(t, res.All[0].MemberList(), 2)
	}
	assert.Len(t, res.Order, 1)
}

func TestRunSplitsTwoFilesWithTightFuzz(t *testing.T) {
	opts := config.Default()
	opts.Repository = "mod"
	opts.Fuzz = 10 * time.Second // narrower than the log's 100s gap
	res, err := Run(context.Background(), opts, testLogger(), readerSource{twoFileLog})
	if !assert.NoError(t, err) {
		return
	}
	assert.Len(t, res.All, 2)
	assert.Len(t, res.Order, 2)
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medo6/shim/internal/session"
)

func TestClassifySaveMode(t *testing.T) {
	cases := []struct {
		save string
		want session.SaveMode
	}{
		{"(string,int64)", session.SaveBinary},
		{"arrow", session.SaveBinary},
		{"csv", session.SaveText},
		{"csv+", session.SaveText},
		{"lcsv+", session.SaveText},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifySaveMode(c.save), c.save)
	}
}

func TestRewrite_NoSavePassesQueryThrough(t *testing.T) {
	got := Rewrite("list()", "", "/tmp/out", 0, false)
	assert.Equal(t, "list()", got)
}

func TestRewrite_ClassicSaveWrapper(t *testing.T) {
	got := Rewrite("list()", "csv", "/tmp/out", 3, false)
	assert.Equal(t, "save(list(),'/tmp/out',3,'csv')", got)
}

func TestRewrite_AIOSaveForEligibleFormat(t *testing.T) {
	got := Rewrite("list()", "arrow", "/tmp/out", 3, true)
	assert.Equal(t, "aio_save(list(),'path=/tmp/out','instance=3','format=arrow')", got)
}

func TestRewrite_AIOFallsBackForIneligibleFormat(t *testing.T) {
	// "csv" (without the trailing '+') is not in the AIO-eligible set
	// even when USE_AIO is on.
	got := Rewrite("list()", "csv", "/tmp/out", 3, true)
	assert.Equal(t, "save(list(),'/tmp/out',3,'csv')", got)
}

func TestRewrite_AIOEligibleParenFormat(t *testing.T) {
	got := Rewrite("list()", "(string,int64)", "/tmp/out", 0, true)
	assert.Equal(t, "aio_save(list(),'path=/tmp/out','instance=0','format=(string,int64)')", got)
}

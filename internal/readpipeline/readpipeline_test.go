package readpipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medo6/shim/internal/backend"
	"github.com/medo6/shim/internal/buffer"
	"github.com/medo6/shim/internal/query"
	"github.com/medo6/shim/internal/session"
)

func newSavedSlot(t *testing.T, save, contents string) *session.Slot {
	t.Helper()
	dir := t.TempDir()
	bufs := buffer.NewManager(dir)
	fc := backend.NewFakeClient()
	store := session.NewStore(session.Config{
		MaxSessions: 1,
		Timeout:     time.Minute,
		Client:      fc,
	}, bufs)
	exec := query.NewExecutor(store, query.Config{})

	slot, err := store.Allocate(context.Background(), "", "")
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), query.Params{SessionID: slot.ID(), Query: "list()", Save: save})
	require.NoError(t, err)

	err = writeFile(slot.OutputPath(), contents)
	require.NoError(t, err)
	return slot
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}

func TestReadLines_WholeFileWhenNLessThanOne(t *testing.T) {
	slot := newSavedSlot(t, "csv", "0\n1\n2\n")

	data, err := ReadLines(slot, 0)
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n2\n", string(data))
}

func TestReadLines_ExactCount(t *testing.T) {
	slot := newSavedSlot(t, "csv", "0\n1\n2\n")

	data, err := ReadLines(slot, 2)
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n", string(data))

	data, err = ReadLines(slot, 2)
	require.NoError(t, err)
	assert.Equal(t, "2\n", string(data))
}

func TestReadLines_EOFReturnsErrEOF(t *testing.T) {
	slot := newSavedSlot(t, "csv", "0\n")

	_, err := ReadLines(slot, 1)
	require.NoError(t, err)

	_, err = ReadLines(slot, 1)
	assert.ErrorIs(t, err, ErrEOF)
}

func TestReadBytes_WholeFileWhenNLessThanOne(t *testing.T) {
	slot := newSavedSlot(t, "(string,int64)", "hello")

	data, err := ReadBytes(slot, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestReadBytes_ClampsToFileSize(t *testing.T) {
	slot := newSavedSlot(t, "(string,int64)", "hi")

	data, err := ReadBytes(slot, 1000)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestReadBytes_EOFReturnsErrEOF(t *testing.T) {
	slot := newSavedSlot(t, "(string,int64)", "x")

	_, err := ReadBytes(slot, 1)
	require.NoError(t, err)

	_, err = ReadBytes(slot, 1)
	assert.ErrorIs(t, err, ErrEOF)
}

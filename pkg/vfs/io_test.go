package vfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, fs *Filesystem, h *Handle) string {
	t.Helper()
	buf := make([]byte, 256)
	n, err := fs.Read(h, 0, buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := newTestFS(t, newMemOrigin(nil))
	h := create(t, fs, `\f`, DispositionCreate, 0)
	defer fs.Close(h)

	n, err := fs.Write(h, 0, []byte("hello"), false)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = fs.Write(h, 0, []byte(" world"), true)
	require.NoError(t, err)
	assert.Equal(t, "hello world", readAll(t, fs, h))

	_, err = fs.Write(h, 13, []byte("!"), false)
	require.NoError(t, err)
	assert.Equal(t, "hello world\x00\x00!", readAll(t, fs, h))

	n, err = fs.Read(h, 100, make([]byte, 4))
	require.NoError(t, err)
	assert.Zero(t, n)

	info, err := fs.GetInfo(h)
	require.NoError(t, err)
	assert.Equal(t, int64(14), info.Size)
	assert.True(t, info.Attributes.Has(AttrArchive))
}

func TestSetEndOfFileZeroFills(t *testing.T) {
	fs := newTestFS(t, newMemOrigin(nil))
	h := create(t, fs, `\f`, DispositionCreate, 0)
	defer fs.Close(h)

	_, err := fs.Write(h, 0, []byte("abcdef"), false)
	require.NoError(t, err)

	require.NoError(t, fs.SetEndOfFile(h, 2))
	assert.Equal(t, "ab", readAll(t, fs, h))

	require.NoError(t, fs.SetEndOfFile(h, 4))
	assert.Equal(t, "ab\x00\x00", readAll(t, fs, h), "regrown bytes must not resurrect old data")

	require.NoError(t, fs.SetAllocationSize(h, 1))
	assert.Equal(t, "a", readAll(t, fs, h))

	require.ErrorIs(t, fs.SetEndOfFile(h, -1), ErrInvalidParameter)
}

func TestDirectoryContentRequests(t *testing.T) {
	fs := newTestFS(t, newMemOrigin(nil))
	h := create(t, fs, `\d`, DispositionCreate, OptionDirectoryFile)
	defer fs.Close(h)

	_, err := fs.Read(h, 0, make([]byte, 1))
	require.ErrorIs(t, err, ErrInvalidDeviceRequest)
	_, err = fs.Write(h, 0, []byte("x"), false)
	require.ErrorIs(t, err, ErrAccessDenied)
	require.ErrorIs(t, fs.SetEndOfFile(h, 0), ErrInvalidDeviceRequest)
}

func TestDelayedWriteTimesCommitOnClose(t *testing.T) {
	fs := newTestFS(t, newMemOrigin(nil))
	h := create(t, fs, `\f`, DispositionCreate, 0)

	stat := h.Entry().Stat()
	stat.mu.RLock()
	before := stat.mtime
	stat.mu.RUnlock()

	time.Sleep(2 * time.Millisecond)
	_, err := fs.Write(h, 0, []byte("x"), false)
	require.NoError(t, err)

	stat.mu.RLock()
	assert.Equal(t, before, stat.mtime, "write times are delayed until close")
	stat.mu.RUnlock()

	fs.Close(h)
	stat.mu.RLock()
	assert.True(t, stat.mtime.After(before))
	stat.mu.RUnlock()
}

func TestSetTimes(t *testing.T) {
	fs := newTestFS(t, newMemOrigin(nil))
	h := create(t, fs, `\f`, DispositionCreate, 0)

	fixed := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, fs.SetTimes(h,
		TimeOp{Action: TimeSet, Time: fixed},
		TimeOp{Action: TimeDontChange},
		TimeOp{Action: TimeDisableUpdate},
	))

	_, err := fs.Write(h, 0, []byte("x"), false)
	require.NoError(t, err)
	require.NoError(t, fs.SetTimes(h, TimeOp{}, TimeOp{}, TimeOp{Action: TimeSet, Time: fixed}))

	info, err := fs.GetInfo(h)
	require.NoError(t, err)
	assert.Equal(t, fixed, info.CreationTime)
	assert.NotEqual(t, fixed, info.LastWriteTime, "set is ignored while updates are disabled")

	require.NoError(t, fs.SetTimes(h, TimeOp{}, TimeOp{}, TimeOp{Action: TimeResumeUpdate}))
	require.NoError(t, fs.SetTimes(h, TimeOp{}, TimeOp{}, TimeOp{Action: TimeSet, Time: fixed}))
	info, err = fs.GetInfo(h)
	require.NoError(t, err)
	assert.Equal(t, fixed, info.LastWriteTime)
	fs.Close(h)
}

func TestSetAttributes(t *testing.T) {
	fs := newTestFS(t, newMemOrigin(nil))
	h := create(t, fs, `\f`, DispositionCreate, 0)
	defer fs.Close(h)

	require.NoError(t, fs.SetAttributes(h, uint32(AttrHidden|AttrDirectory)))
	info, err := fs.GetInfo(h)
	require.NoError(t, err)
	assert.Equal(t, AttrHidden, info.Attributes, "the directory bit cannot be stored")

	require.NoError(t, fs.SetAttributes(h, 0))
	info, err = fs.GetInfo(h)
	require.NoError(t, err)
	assert.Equal(t, AttrNormal, info.Attributes)
}

func TestOversizedContentIsRejected(t *testing.T) {
	fs := newTestFS(t, newMemOrigin(nil), func(o *Options) { o.MaxFileSize = 16 })
	h := create(t, fs, `\f`, DispositionCreate, 0)
	defer fs.Close(h)

	tests := []struct {
		name string
		call func() error
	}{
		{"huge offset", func() error { _, err := fs.Write(h, 1<<62, []byte{1}, false); return err }},
		{"offset near int64 max", func() error { _, err := fs.Write(h, 1<<63-1, []byte{1, 2}, false); return err }},
		{"past the cap", func() error { _, err := fs.Write(h, 10, make([]byte, 7), false); return err }},
		{"end of file set past the cap", func() error { return fs.SetEndOfFile(h, 1<<62) }},
		{"allocation past the cap", func() error { return fs.SetAllocationSize(h, 17) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { err = tt.call() })
			require.ErrorIs(t, err, ErrInvalidParameter)
		})
	}

	// Exactly at the cap is fine, and nothing above changed the content.
	_, err := fs.Write(h, 10, make([]byte, 6), false)
	require.NoError(t, err)
	require.NoError(t, fs.SetEndOfFile(h, 16))
	info, err := fs.GetInfo(h)
	require.NoError(t, err)
	assert.Equal(t, int64(16), info.Size)

	_, err = fs.Write(h, 0, []byte{1}, true)
	require.ErrorIs(t, err, ErrInvalidParameter, "appending at the cap")
}

func TestClosingStreamHandleTouchesEntry(t *testing.T) {
	fs := newTestFS(t, newMemOrigin(nil))
	fs.Close(create(t, fs, `\f`, DispositionCreate, 0))

	h := create(t, fs, `\f:s`, DispositionCreate, 0)
	stat := h.Entry().Stat()
	stat.mu.RLock()
	before := stat.mtime
	stat.mu.RUnlock()

	time.Sleep(2 * time.Millisecond)
	fs.Close(h)

	stat.mu.RLock()
	defer stat.mu.RUnlock()
	assert.True(t, stat.mtime.After(before), "closing a stream handle refreshes the entry's modify time")
}

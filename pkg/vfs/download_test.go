package vfs

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/httpmemfs/pkg/origin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchThroughDownloadsOnce(t *testing.T) {
	o := newMemOrigin(map[string]string{"docs/readme.txt": "hello from the origin"})
	fs := newTestFS(t, o)

	res, err := fs.Create(CreateRequest{Path: `\docs\readme.txt`, Access: AccessReadData, Disposition: DispositionOpen})
	require.NoError(t, err)
	assert.True(t, res.Created)
	h := res.Handle

	hf, ok := h.Entry().(*HTTPFile)
	require.True(t, ok)
	assert.Equal(t, "mem:///docs/readme.txt", hf.URL())

	buf := make([]byte, 64)
	n, err := fs.Read(h, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello from the origin", string(buf[:n]))

	n, err = fs.Read(h, 6, buf[:4])
	require.NoError(t, err)
	assert.Equal(t, "from", string(buf[:n]))

	fs.Close(h)
	require.Eventually(t, func() bool { return !hf.DownloadPending() }, time.Second, time.Millisecond)
	assert.Equal(t, 1, o.fetchCount("docs/readme.txt"))

	// Every open of an HTTP file starts a fresh fetch.
	h = create(t, fs, `\docs\readme.txt`, DispositionOpen, 0)
	_, err = fs.Read(h, 0, buf)
	require.NoError(t, err)
	fs.Close(h)
	assert.Equal(t, 2, o.fetchCount("docs/readme.txt"))
}

func TestGetInfoReportsLengthBeforeBody(t *testing.T) {
	body := "0123456789abcdefghij"
	o := newMemOrigin(map[string]string{"big.bin": body})
	o.gate = make(chan struct{})
	fs := newTestFS(t, o)

	h := create(t, fs, `\big.bin`, DispositionOpen, 0)
	defer fs.Close(h)

	info, err := fs.GetInfo(h)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), info.Size)

	st := h.boundStream()
	st.mu.RLock()
	buffered := len(st.data)
	st.mu.RUnlock()
	assert.Less(t, buffered, len(body), "size must be known before the body has arrived")

	// The first half is already buffered and can be served without waiting.
	buf := make([]byte, 4)
	n, err := fs.Read(h, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))

	close(o.gate)
	buf = make([]byte, 32)
	n, err = fs.Read(h, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, body, string(buf[:n]))
}

func TestReadTimesOutWithoutShortRead(t *testing.T) {
	o := newMemOrigin(map[string]string{"slow": "abcdefgh"})
	o.gate = make(chan struct{})
	defer close(o.gate)
	fs := newTestFS(t, o, func(opts *Options) { opts.WaitTimeout = 30 * time.Millisecond })

	h := create(t, fs, `\slow`, DispositionOpen, 0)
	defer fs.Close(h)

	buf := make([]byte, 8)
	n, err := fs.Read(h, 0, buf)
	require.ErrorIs(t, err, ErrIOTimeout)
	assert.Zero(t, n)
}

func TestMissingOriginFileTimesOut(t *testing.T) {
	o := newMemOrigin(nil)
	fs := newTestFS(t, o, func(opts *Options) { opts.WaitTimeout = 30 * time.Millisecond })

	h := create(t, fs, `\nowhere.txt`, DispositionOpen, 0)
	defer fs.Close(h)

	hf := h.Entry().(*HTTPFile)
	require.Eventually(t, func() bool { return !hf.DownloadPending() }, time.Second, time.Millisecond)

	_, err := fs.GetInfo(h)
	require.ErrorIs(t, err, ErrIOTimeout)
	_, err = fs.Read(h, 0, make([]byte, 1))
	require.ErrorIs(t, err, ErrIOTimeout)
}

func TestAttributeOnlyOpenSkipsBody(t *testing.T) {
	o := newMemOrigin(map[string]string{"meta.txt": "0123456789"})
	fs := newTestFS(t, o)

	res, err := fs.Create(CreateRequest{Path: `\meta.txt`, Access: AccessReadAttributes, Disposition: DispositionOpen})
	require.NoError(t, err)
	defer fs.Close(res.Handle)

	info, err := fs.GetInfo(res.Handle)
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size)

	st := res.Handle.boundStream()
	require.Eventually(t, func() bool {
		st.mu.RLock()
		defer st.mu.RUnlock()
		return !st.filling
	}, time.Second, time.Millisecond)
	st.mu.RLock()
	assert.Empty(t, st.data)
	st.mu.RUnlock()
}

func TestRemoteContentIsReadOnly(t *testing.T) {
	o := newMemOrigin(map[string]string{"r.txt": "data"})
	fs := newTestFS(t, o)

	h := create(t, fs, `\r.txt`, DispositionOpen, 0)
	defer fs.Close(h)

	_, err := fs.Write(h, 0, []byte("x"), false)
	require.ErrorIs(t, err, ErrAccessDenied)
	require.ErrorIs(t, fs.SetEndOfFile(h, 0), ErrAccessDenied)

	_, err = fs.Create(CreateRequest{Path: `\r.txt`, Disposition: DispositionOverwriteIf})
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestFetchThroughOverHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/site/a/b.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("served over http"))
	}))
	defer srv.Close()

	o, err := origin.NewHTTP(origin.HTTPConfig{BaseURL: srv.URL + "/site"})
	require.NoError(t, err)
	fs := newTestFS(t, o)

	h := create(t, fs, `\a\b.txt`, DispositionOpen, 0)
	defer fs.Close(h)

	buf := make([]byte, 64)
	n, err := fs.Read(h, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "served over http", string(buf[:n]))
	assert.Equal(t, int32(1), hits.Load())
}

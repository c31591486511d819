package origin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferSink struct {
	length    int64
	headerSet bool
	stop      bool
	buf       bytes.Buffer
}

func (s *bufferSink) Header(n int64) bool {
	s.length = n
	s.headerSet = true
	return !s.stop
}

func (s *bufferSink) Write(p []byte) error {
	_, err := s.buf.Write(p)
	return err
}

func newTestOrigin(t *testing.T, base string, retries int) *HTTP {
	t.Helper()
	o, err := NewHTTP(HTTPConfig{BaseURL: base, MaxRetries: retries, ChunkSize: 4})
	require.NoError(t, err)
	o.policy.InitialWait = 0
	return o
}

func TestResolve(t *testing.T) {
	o := newTestOrigin(t, "http://example.com/files", 0)

	tests := []struct {
		in   string
		want string
	}{
		{"", "http://example.com/files/index.html"},
		{`\`, "http://example.com/files/index.html"},
		{`\a\b.txt`, "http://example.com/files/a/b.txt"},
		{"dir/with space.txt", "http://example.com/files/dir/with%20space.txt"},
		{`\q?x#y`, "http://example.com/files/q%3Fx%23y"},
	}
	for _, tt := range tests {
		got, err := o.Resolve(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := o.Resolve(`\..\etc\passwd`)
	require.Error(t, err)
}

func TestNewHTTPRejectsBadBase(t *testing.T) {
	for _, base := range []string{"ftp://x/", "relative/path", "http://"} {
		_, err := NewHTTP(HTTPConfig{BaseURL: base})
		assert.Error(t, err, base)
	}
}

func TestFetchStreamsBody(t *testing.T) {
	body := []byte("hello, chunked world")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/a.txt", r.URL.Path)
		assert.Equal(t, "httpmemfs/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	o := newTestOrigin(t, srv.URL, 0)
	u, err := o.Resolve("a.txt")
	require.NoError(t, err)

	sink := &bufferSink{}
	n, err := o.Fetch(context.Background(), u, sink)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)
	assert.Equal(t, int64(len(body)), sink.length)
	assert.Equal(t, body, sink.buf.Bytes())
}

func TestFetchHeaderOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	o := newTestOrigin(t, srv.URL, 0)
	sink := &bufferSink{stop: true}
	n, err := o.Fetch(context.Background(), srv.URL+"/x", sink)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, sink.headerSet)
	assert.Equal(t, int64(10), sink.length)
	assert.Zero(t, sink.buf.Len())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	o := newTestOrigin(t, srv.URL, 3)
	sink := &bufferSink{}
	_, err := o.Fetch(context.Background(), srv.URL+"/x", sink)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, "ok", sink.buf.String())
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	o := newTestOrigin(t, srv.URL, 3)
	sink := &bufferSink{}
	_, err := o.Fetch(context.Background(), srv.URL+"/missing", sink)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
	assert.False(t, sink.headerSet)
}

func TestFetchSendsConfiguredHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t0k3n", r.Header.Get("Authorization"))
		assert.Equal(t, "custom/2", r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	o, err := NewHTTP(HTTPConfig{
		BaseURL:   srv.URL,
		UserAgent: "custom/2",
		Headers:   map[string]string{"Authorization": "Bearer t0k3n"},
	})
	require.NoError(t, err)

	_, err = o.Fetch(context.Background(), srv.URL+"/", &bufferSink{})
	require.NoError(t, err)
}

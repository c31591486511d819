package vfs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/httpmemfs/pkg/origin"
	"github.com/marmos91/httpmemfs/pkg/workerpool"
	"github.com/stretchr/testify/require"
)

// memOrigin serves bodies from a map. When gate is set, each body is
// delivered in two halves and the second half waits for the gate.
type memOrigin struct {
	mu      sync.Mutex
	files   map[string][]byte
	fetches map[string]int
	gate    chan struct{}
}

func newMemOrigin(files map[string]string) *memOrigin {
	o := &memOrigin{files: map[string][]byte{}, fetches: map[string]int{}}
	for k, v := range files {
		o.files[k] = []byte(v)
	}
	return o
}

func (o *memOrigin) Resolve(rel string) (string, error) {
	return "mem:///" + rel, nil
}

func (o *memOrigin) Fetch(ctx context.Context, url string, sink origin.Sink) (int64, error) {
	rel := strings.TrimPrefix(url, "mem:///")

	o.mu.Lock()
	o.fetches[rel]++
	body, ok := o.files[rel]
	gate := o.gate
	o.mu.Unlock()

	if !ok {
		return 0, &origin.StatusError{URL: url, StatusCode: 404}
	}
	if !sink.Header(int64(len(body))) {
		return 0, nil
	}

	half := len(body) / 2
	if err := sink.Write(body[:half]); err != nil {
		return 0, err
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return int64(half), ctx.Err()
		}
	}
	if err := sink.Write(body[half:]); err != nil {
		return int64(half), err
	}
	return int64(len(body)), nil
}

func (o *memOrigin) fetchCount(rel string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fetches[rel]
}

func newTestFS(t *testing.T, o origin.Origin, tweak ...func(*Options)) *Filesystem {
	t.Helper()

	pool, err := workerpool.New(workerpool.Options{Size: 2, QueueSize: 8, Name: "test"})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	opts := Options{
		Origin:       o,
		Pool:         pool,
		WaitTimeout:  2 * time.Second,
		PollInterval: time.Millisecond,
	}
	for _, fn := range tweak {
		fn(&opts)
	}

	fs, err := New(opts)
	require.NoError(t, err)
	return fs
}

func create(t *testing.T, fs *Filesystem, path string, disp Disposition, opts CreateOptions) *Handle {
	t.Helper()
	res, err := fs.Create(CreateRequest{
		Path:        path,
		Access:      AccessGenericRead | AccessGenericWrite,
		Disposition: disp,
		Options:     opts,
	})
	require.NoError(t, err, path)
	return res.Handle
}

func lookup(fs *Filesystem, path string) Entry {
	dir := fs.root
	parts := splitComponents(path)
	for i, p := range parts {
		dir.mu.RLock()
		e := dir.child(p)
		dir.mu.RUnlock()
		if e == nil {
			return nil
		}
		if i == len(parts)-1 {
			return e
		}
		d, ok := e.(*Directory)
		if !ok {
			return nil
		}
		dir = d
	}
	return dir
}

func handleCount(e Entry) uint32 {
	s := e.Stat()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handleCount
}

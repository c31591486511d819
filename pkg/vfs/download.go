package vfs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/httpmemfs/internal/logger"
)

// Download outcomes reported to Metrics.
const (
	DownloadComplete    = "complete"
	DownloadHeadersOnly = "headers_only"
	DownloadFailed      = "failed"
)

// maxPrealloc caps the buffer reserved up front from an advertised length.
const maxPrealloc = 8 << 20

// download is one fetch of an HTTPFile into the stream bound by the open
// that scheduled it.
type download struct {
	id       uuid.UUID
	file     *HTTPFile
	stream   *AltStream
	url      string
	wantBody bool
}

// startDownload queues d on the worker pool. The caller must not hold any
// entry lock: queueing blocks while the pool is saturated.
func (fs *Filesystem) startDownload(d *download) {
	err := fs.pool.ExecuteAsync(context.Background(), func(ctx context.Context) error {
		return fs.runDownload(ctx, d)
	})
	if err != nil {
		// The stream stays unfilled, so readers time out as they would on
		// a failed fetch.
		logger.Error("download %s: cannot schedule %s: %v", d.id, d.url, err)
		d.file.downloadPending.Store(false)
	}
}

// runDownload performs the fetch. Failures leave the stream marked as
// filling so that waiters run into the I/O timeout instead of seeing a
// short file.
func (fs *Filesystem) runDownload(ctx context.Context, d *download) error {
	fs.metrics.SetDownloadsInFlight(int(fs.inFlight.Add(1)))
	start := time.Now()
	defer func() {
		d.file.downloadPending.Store(false)
		fs.metrics.SetDownloadsInFlight(int(fs.inFlight.Add(-1)))
	}()

	logger.Debug("download %s: GET %s (body=%t)", d.id, d.url, d.wantBody)

	sink := &streamSink{stream: d.stream, wantBody: d.wantBody}
	n, err := fs.origin.Fetch(ctx, d.url, sink)
	if err != nil {
		fs.metrics.ObserveDownload(DownloadFailed, n, time.Since(start))
		return fmt.Errorf("download %s: %s: %w", d.id, d.url, err)
	}

	d.stream.mu.Lock()
	d.stream.filling = false
	d.stream.mu.Unlock()

	outcome := DownloadComplete
	if !d.wantBody {
		outcome = DownloadHeadersOnly
	}
	fs.metrics.ObserveDownload(outcome, n, time.Since(start))
	logger.Debug("download %s: %s done, %d bytes in %s", d.id, outcome, n, time.Since(start))
	return nil
}

// streamSink appends a fetched body to a remote stream, taking the stream
// lock once per chunk so readers can consume partial content.
type streamSink struct {
	stream   *AltStream
	wantBody bool
}

func (s *streamSink) Header(contentLength int64) bool {
	s.stream.mu.Lock()
	defer s.stream.mu.Unlock()

	s.stream.contentLength = contentLength
	s.stream.headersKnown = true
	if !s.wantBody {
		s.stream.filling = false
		return false
	}
	if contentLength > 0 {
		s.stream.data = make([]byte, 0, min(contentLength, maxPrealloc))
	}
	return true
}

func (s *streamSink) Write(chunk []byte) error {
	s.stream.mu.Lock()
	s.stream.data = append(s.stream.data, chunk...)
	s.stream.mu.Unlock()
	return nil
}

// Package origin fetches file content from the remote server that backs the
// filesystem.
//
// An Origin maps a path relative to the mount root onto a URL and streams
// the body of that URL into a Sink. The engine only ever asks for whole
// objects; there are no range requests.
package origin

import (
	"context"
	"errors"
	"fmt"
)

// Sink receives one fetched object.
type Sink interface {
	// Header is called exactly once, before any Write, with the advertised
	// content length (-1 when the origin did not send one). Returning false
	// ends the fetch without reading the body.
	Header(contentLength int64) bool

	// Write receives the next chunk of the body. The slice is only valid for
	// the duration of the call.
	Write(chunk []byte) error
}

// Origin is a remote source of file content.
type Origin interface {
	// Resolve returns the absolute URL for a mount-relative path. Both '\'
	// and '/' separate components. The empty path maps to the index
	// document.
	Resolve(relative string) (string, error)

	// Fetch streams the object at rawURL into sink and returns the number of
	// body bytes delivered.
	Fetch(ctx context.Context, rawURL string, sink Sink) (int64, error)
}

// IndexDocument is what an empty relative path resolves to.
const IndexDocument = "index.html"

// ErrNotFound is matched by StatusError values carrying 404 or 410.
var ErrNotFound = errors.New("object not found at origin")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("origin returned status %d for %s", e.StatusCode, e.URL)
}

// Is lets errors.Is(err, ErrNotFound) match missing objects.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && (e.StatusCode == 404 || e.StatusCode == 410)
}

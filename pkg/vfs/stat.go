package vfs

import (
	"strings"
	"sync"
	"time"

	"github.com/marmos91/httpmemfs/pkg/security"
)

// EntryID identifies an entry for the lifetime of the process. The root is
// rootID; the zero value means "no entry".
type EntryID uint64

const rootID EntryID = 1

// Stat is the metadata shared by every entry kind.
//
// All fields are guarded by mu. handleCount is the number of live Handles
// on the entry and only changes under the write lock; once deletePending
// is set the entry is unlinked by the disposal of its last handle.
type Stat struct {
	mu sync.RWMutex

	id            EntryID
	attrs         Attributes
	ctime         time.Time
	mtime         time.Time
	atime         time.Time
	sec           security.Descriptor
	handleCount   uint32
	deletePending bool

	// parent is a lookup key into the directory index, not an owning
	// reference. Zero only for the root.
	parent EntryID

	streams map[string]*namedStream
}

type namedStream struct {
	name   string
	stream *AltStream
}

func newStat(id EntryID, attrs Attributes, sec security.Descriptor, parent EntryID) *Stat {
	now := time.Now()
	return &Stat{
		id:      id,
		attrs:   attrs,
		ctime:   now,
		mtime:   now,
		atime:   now,
		sec:     sec,
		parent:  parent,
		streams: make(map[string]*namedStream),
	}
}

// ID returns the entry id. It never changes.
func (s *Stat) ID() EntryID { return s.id }

// touchModified sets the modify time and, with it, the access time.
// Caller holds the write lock.
func (s *Stat) touchModified(now time.Time) {
	s.mtime = now
	s.atime = now
}

// touchAccessed sets the access time. Caller holds the write lock.
func (s *Stat) touchAccessed(now time.Time) {
	s.atime = now
}

// acquire registers a new handle. Caller holds the write lock.
func (s *Stat) acquire() {
	s.handleCount++
}

// release drops a handle. Caller holds the write lock.
func (s *Stat) release() {
	if s.handleCount == 0 {
		panic("vfs: handle count underflow on entry")
	}
	s.handleCount--
}

func (s *Stat) parentID() EntryID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parent
}

// stream looks up a named stream. Caller holds the lock.
func (s *Stat) stream(name string) *AltStream {
	if ns, ok := s.streams[foldName(name)]; ok {
		return ns.stream
	}
	return nil
}

// streamName finds the name under which st is stored. Caller holds the
// lock.
func (s *Stat) streamName(st *AltStream) (string, bool) {
	for _, ns := range s.streams {
		if ns.stream == st {
			return ns.name, true
		}
	}
	return "", false
}

func (s *Stat) putStream(name string, st *AltStream) {
	s.streams[foldName(name)] = &namedStream{name: name, stream: st}
}

func (s *Stat) removeStream(name string) {
	delete(s.streams, foldName(name))
}

// removeStreamByIdentity deletes st and reports whether it was present.
func (s *Stat) removeStreamByIdentity(st *AltStream) bool {
	for k, ns := range s.streams {
		if ns.stream == st {
			delete(s.streams, k)
			return true
		}
	}
	return false
}

// AltStream is a named data stream. Remote streams hold the body of an
// HTTP file as it arrives and are read-only.
//
// All fields are guarded by mu, which is never held across network I/O.
type AltStream struct {
	mu sync.RWMutex

	handleCount   uint32
	deletePending bool
	data          []byte
	created       time.Time

	// Remote streams only.
	remote        bool
	headersKnown  bool
	filling       bool
	contentLength int64
}

func newAltStream() *AltStream {
	return &AltStream{created: time.Now(), contentLength: -1}
}

func newRemoteStream() *AltStream {
	st := newAltStream()
	st.remote = true
	st.filling = true
	return st
}

// size returns the best known size without waiting. Caller holds the lock.
func (st *AltStream) size() int64 {
	if st.remote && st.contentLength >= 0 {
		return st.contentLength
	}
	return int64(len(st.data))
}

// sizeKnown reports whether size is final. Caller holds the lock.
func (st *AltStream) sizeKnown() bool {
	if !st.remote {
		return true
	}
	if !st.headersKnown {
		return false
	}
	return st.contentLength >= 0 || !st.filling
}

// covers reports whether the byte range [offset, offset+length) can be
// served now. Reads past the advertised length are clamped to it.
// Caller holds the lock.
func (st *AltStream) covers(offset, length int64) bool {
	if !st.remote || !st.filling {
		return true
	}
	want := offset + length
	if st.contentLength >= 0 && want > st.contentLength {
		want = st.contentLength
	}
	return st.headersKnown && int64(len(st.data)) >= want
}

func (st *AltStream) acquire() {
	st.handleCount++
}

func (st *AltStream) release() {
	if st.handleCount == 0 {
		panic("vfs: handle count underflow on stream")
	}
	st.handleCount--
}

// foldName maps a name to its case-insensitive lookup key.
func foldName(name string) string {
	return strings.ToLower(name)
}

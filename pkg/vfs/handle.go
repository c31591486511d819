package vfs

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/httpmemfs/internal/logger"
)

// Handle is one open session on an entry, optionally bound to a stream.
//
// A Handle holds one count on its entry's Stat and, when bound, one on its
// AltStream. Both are returned by Filesystem.Close.
type Handle struct {
	index         uint64
	entry         Entry
	deleteOnClose bool

	// streamMu guards stream; a stream move rebinds it.
	streamMu sync.RWMutex
	stream   *AltStream

	ctimeEnabled atomic.Bool
	mtimeEnabled atomic.Bool
	atimeEnabled atomic.Bool

	delayedMu    sync.Mutex
	mtimeDelayed time.Time
	atimeDelayed time.Time

	closed atomic.Bool
}

// newHandle builds a handle and takes its counts. The caller must hold the
// entry's Stat write lock.
func (fs *Filesystem) newHandle(entry Entry, stream *AltStream, deleteOnClose bool) *Handle {
	h := &Handle{
		index:         fs.handleSeq.Add(1),
		entry:         entry,
		stream:        stream,
		deleteOnClose: deleteOnClose,
	}
	h.ctimeEnabled.Store(true)
	h.mtimeEnabled.Store(true)
	h.atimeEnabled.Store(true)

	entry.Stat().acquire()
	if stream != nil {
		stream.mu.Lock()
		stream.acquire()
		stream.mu.Unlock()
	}
	return h
}

// Index returns the handle's unique sequence number.
func (h *Handle) Index() uint64 { return h.index }

// Entry returns the entry the handle is open on.
func (h *Handle) Entry() Entry { return h.entry }

// DeleteOnClose reports whether closing the handle deletes its target.
func (h *Handle) DeleteOnClose() bool { return h.deleteOnClose }

// IsDir reports whether the handle addresses a directory's own content.
// Handles bound to a stream never do.
func (h *Handle) IsDir() bool {
	if h.boundStream() != nil {
		return false
	}
	return h.entry.IsDir()
}

func (h *Handle) boundStream() *AltStream {
	h.streamMu.RLock()
	defer h.streamMu.RUnlock()
	return h.stream
}

func (h *Handle) bind(st *AltStream) {
	h.streamMu.Lock()
	h.stream = st
	h.streamMu.Unlock()
}

// namedStream returns the bound stream if it is a local named stream, and
// nil for unbound handles and for an HTTP file's remote content.
func (h *Handle) namedStream() *AltStream {
	st := h.boundStream()
	if st == nil || st.remote {
		return nil
	}
	return st
}

// updateAtime sets the access time unless disabled on this handle.
// Caller holds the Stat write lock.
func (h *Handle) updateAtime(s *Stat, t time.Time) {
	if h.atimeEnabled.Load() {
		s.atime = t
	}
}

// updateMtime sets the modify time and the access time, each unless
// disabled on this handle. Caller holds the Stat write lock.
func (h *Handle) updateMtime(s *Stat, t time.Time) {
	h.updateAtime(s, t)
	if h.mtimeEnabled.Load() {
		s.mtime = t
	}
}

// delayWrite records a write for the timestamps committed at close.
func (h *Handle) delayWrite(t time.Time) {
	h.delayedMu.Lock()
	defer h.delayedMu.Unlock()
	if h.mtimeEnabled.Load() {
		h.mtimeDelayed = t
	}
	if h.atimeEnabled.Load() {
		h.atimeDelayed = t
	}
}

// commitDelayed folds delayed timestamps into s, keeping the later value.
// Caller holds the Stat write lock.
func (h *Handle) commitDelayed(s *Stat) {
	h.delayedMu.Lock()
	defer h.delayedMu.Unlock()
	if !h.mtimeDelayed.IsZero() && h.mtimeDelayed.After(s.mtime) {
		s.mtime = h.mtimeDelayed
	}
	if !h.atimeDelayed.IsZero() && h.atimeDelayed.After(s.atime) {
		s.atime = h.atimeDelayed
	}
	h.mtimeDelayed = time.Time{}
	h.atimeDelayed = time.Time{}
}

// Close commits the handle's delayed timestamps and disposes of it.
// Closing a handle twice is a no-op.
func (fs *Filesystem) Close(h *Handle) {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	stat := h.entry.Stat()
	stat.mu.Lock()
	h.commitDelayed(stat)
	stat.mu.Unlock()

	fs.dispose(h)
	fs.metrics.SetOpenHandles(int(fs.openHandles.Add(-1)))
}

// dispose returns the handle's counts and performs any deferred deletion.
//
// This is the only place an entry leaves its parent or a stream leaves its
// entry because of delete-pending, and the lock order here is what keeps it
// race free against Create:
//
//  1. read the parent id under a momentary Stat read lock, then drop it
//  2. lock the parent's child map
//  3. lock the Stat
//
// Create holds the same child map lock while it looks up an entry and takes
// a new handle on it, so a handle cannot appear on an entry that is being
// unlinked. A Stat lock is never held while a child map lock is acquired.
func (fs *Filesystem) dispose(h *Handle) {
	stat := h.entry.Stat()

	parent := fs.lockParent(stat)
	if parent != nil {
		defer parent.mu.Unlock()
	}

	stream := h.boundStream()
	named := stream != nil && !stream.remote

	stat.mu.Lock()
	if h.deleteOnClose && !named {
		stat.deletePending = true
	}
	stat.release()

	unlinked := false
	if parent != nil && stat.deletePending && stat.handleCount == 0 {
		if !parent.removeEntry(h.entry) {
			panic("vfs: entry missing from its parent")
		}
		unlinked = true
	} else {
		// A pending delete only survives until the next close. The entry
		// goes away when the final closing handle asks for it; the root
		// never goes away.
		stat.deletePending = false
	}

	if stream != nil {
		stat.mtime = time.Now()
		stream.mu.Lock()
		if h.deleteOnClose && named {
			stream.deletePending = true
		}
		stream.release()
		drop := named && stream.deletePending && stream.handleCount == 0
		stream.mu.Unlock()

		if drop {
			if !stat.removeStreamByIdentity(stream) {
				panic("vfs: stream missing from its entry")
			}
			h.updateAtime(stat, time.Now())
		}
	}
	stat.mu.Unlock()

	if unlinked {
		parent.stat.mu.Lock()
		parent.stat.touchModified(time.Now())
		parent.stat.mu.Unlock()

		if d, ok := h.entry.(*Directory); ok {
			fs.forgetDir(d)
		}
		logger.Debug("close: handle %d removed entry %d", h.index, stat.id)
	}
}

// lockParent write-locks the child map of stat's parent and returns the
// parent, or returns nil for the root. The parent id is read without
// holding any other lock; if a concurrent move repoints the entry before
// the child map is locked, the lookup is retried against the new parent.
func (fs *Filesystem) lockParent(stat *Stat) *Directory {
	for {
		pid := stat.parentID()
		if pid == 0 {
			return nil
		}
		parent := fs.lookupDir(pid)
		if parent == nil {
			panic("vfs: parent directory missing from index")
		}
		parent.mu.Lock()
		if stat.parentID() == pid {
			return parent
		}
		parent.mu.Unlock()
	}
}

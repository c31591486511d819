package vfs

import (
	"strings"
	"time"

	"github.com/marmos91/httpmemfs/internal/logger"
)

// Move renames the handle's target.
//
// A newPath starting with ':' renames within the entry's streams: between
// two named streams, or between a file's default content and a named
// stream. Any other newPath relocates the entry in the tree. replace
// allows an existing, unopened, writable destination to be overwritten.
func (fs *Filesystem) Move(h *Handle, newPath string, replace bool) (err error) {
	defer fs.observe("move", time.Now(), &err)

	if h.entry.Stat().parentID() == 0 {
		return newError(ErrInvalidDeviceRequest, "move", newPath)
	}
	if strings.HasPrefix(newPath, ":") {
		err = fs.moveStream(h, newPath, replace)
	} else {
		err = fs.moveEntry(h, newPath, replace)
	}
	return withOp(err, "move", newPath)
}

func (fs *Filesystem) moveStream(h *Handle, newPath string, replace bool) error {
	dst, err := ParseName(newPath)
	if err != nil {
		return err
	}
	isDir := h.entry.IsDir()
	dstDefault := true
	if dst.Stream != nil {
		if dstDefault, err = dst.Stream.CheckDefault(isDir); err != nil {
			return err
		}
	}

	src := h.boundStream()
	if src != nil && src.remote {
		return ErrAccessDenied
	}

	stat := h.entry.Stat()
	stat.mu.Lock()
	defer stat.mu.Unlock()

	switch {
	case src == nil && dstDefault:
		if isDir {
			return ErrInvalidName
		}

	case src == nil:
		f, ok := h.entry.(*File)
		if !ok {
			return ErrInvalidName
		}
		if err := fs.clearStreamTarget(h, stat, dst.Stream.Name, replace); err != nil {
			return err
		}
		st := newAltStream()
		st.handleCount = 1
		st.deletePending = stat.deletePending
		stat.deletePending = false

		f.mu.Lock()
		st.data = f.data
		f.data = nil
		f.mu.Unlock()

		stat.putStream(dst.Stream.Name, st)
		h.bind(st)

	case dstDefault:
		f, ok := h.entry.(*File)
		if !ok {
			return ErrInvalidName
		}
		name, found := stat.streamName(src)
		if !found {
			panic("vfs: bound stream missing from its entry")
		}

		src.mu.Lock()
		if src.handleCount > 1 {
			src.mu.Unlock()
			return ErrSharingViolation
		}
		if !replace {
			src.mu.Unlock()
			return ErrNameCollision
		}
		src.release()
		stat.deletePending = src.deletePending
		src.deletePending = false
		data := src.data
		src.data = nil
		src.mu.Unlock()

		f.mu.Lock()
		f.data = data
		f.mu.Unlock()

		stat.removeStream(name)
		h.bind(nil)

	default:
		name, found := stat.streamName(src)
		if !found {
			panic("vfs: bound stream missing from its entry")
		}
		if err := fs.clearStreamTarget(h, stat, dst.Stream.Name, replace); err != nil {
			return err
		}
		stat.removeStream(name)
		stat.putStream(dst.Stream.Name, src)
	}

	stat.touchAccessed(time.Now())
	return nil
}

// clearStreamTarget makes room for a stream named name, removing an
// existing unopened stream when replace is set. A target that is the
// handle's own stream is left alone. Caller holds the Stat write lock.
func (fs *Filesystem) clearStreamTarget(h *Handle, stat *Stat, name string, replace bool) error {
	existing := stat.stream(name)
	if existing == nil || existing == h.boundStream() {
		return nil
	}
	if !replace {
		return ErrNameCollision
	}
	existing.mu.RLock()
	busy := existing.handleCount > 0
	existing.mu.RUnlock()
	if busy {
		return ErrAccessDenied
	}
	stat.removeStream(name)
	return nil
}

func (fs *Filesystem) moveEntry(h *Handle, newPath string, replace bool) error {
	if h.namedStream() != nil {
		return ErrInvalidName
	}

	r, err := fs.resolve(newPath)
	if err != nil {
		return err
	}
	if r.parent == nil || r.name.FileName == "" || r.name.Stream != nil {
		return ErrInvalidName
	}

	if d, ok := h.entry.(*Directory); ok && fs.isWithin(r.parent, d) {
		return ErrInvalidParameter
	}

	dst := r.parent
	src, unlock := fs.lockMoveParents(h.entry.Stat(), dst)
	defer unlock()

	if dst.pending() {
		return ErrDeletePending
	}

	name, found := src.nameOf(h.entry)
	if !found {
		panic("vfs: entry missing from its parent")
	}

	if existing := dst.child(r.name.FileName); existing != nil && existing != h.entry {
		if !replace {
			return ErrNameCollision
		}
		if h.entry.IsDir() || existing.IsDir() {
			return ErrAccessDenied
		}
		es := existing.Stat()
		es.mu.RLock()
		busy := es.handleCount > 0 || es.attrs.Has(AttrReadonly)
		es.mu.RUnlock()
		if busy {
			return ErrAccessDenied
		}
		dst.remove(r.name.FileName)
	}

	// Removing first lets a same-parent move change only the case of the
	// name.
	src.remove(name)
	dst.insert(r.name.FileName, h.entry)

	now := time.Now()
	src.stat.mu.Lock()
	src.stat.touchModified(now)
	src.stat.mu.Unlock()

	stat := h.entry.Stat()
	if dst != src {
		dst.stat.mu.Lock()
		dst.stat.touchModified(now)
		dst.stat.mu.Unlock()
	}

	stat.mu.Lock()
	stat.parent = dst.stat.id
	h.updateAtime(stat, now)
	stat.mu.Unlock()

	logger.Debug("move: entry %d %q -> %q under entry %d", stat.id, name, r.name.FileName, dst.stat.id)
	return nil
}

// lockMoveParents write-locks the current parent of stat and dst, in
// ascending id order when they differ, retrying if the entry is moved
// concurrently.
func (fs *Filesystem) lockMoveParents(stat *Stat, dst *Directory) (*Directory, func()) {
	for {
		pid := stat.parentID()
		src := fs.lookupDir(pid)
		if src == nil {
			panic("vfs: parent directory missing from index")
		}

		first, second := src, dst
		if second.stat.id < first.stat.id {
			first, second = second, first
		}
		first.mu.Lock()
		if second != first {
			second.mu.Lock()
		}
		unlock := func() {
			if second != first {
				second.mu.Unlock()
			}
			first.mu.Unlock()
		}

		if stat.parentID() == pid {
			return src, unlock
		}
		unlock()
	}
}

// isWithin reports whether dir is d or lies below it.
func (fs *Filesystem) isWithin(dir, d *Directory) bool {
	for cur := dir; cur != nil; {
		if cur == d {
			return true
		}
		pid := cur.stat.parentID()
		if pid == 0 {
			return false
		}
		cur = fs.lookupDir(pid)
	}
	return false
}
